// Package mcp exposes the review core as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/crv/internal/history"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/session"
)

// Server wraps the review session and history and exposes them as MCP tools.
type Server struct {
	session *session.Controller
	history *history.Manager
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(ctrl *session.Controller, hist *history.Manager, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{session: ctrl, history: hist, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("crv", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.submitReviewTool())
	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.reviewStatsTool())
	srv.AddTool(s.exportReportTool())
	srv.AddTool(s.deleteReviewTool())
	srv.AddTool(s.listProvidersTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrBusy), errors.Is(err, models.ErrNoResult),
		models.IsServiceFailure(err):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
}

// crv_submit_review
func (s *Server) submitReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_submit_review",
		mcp.WithDescription("Submit source code for an AI code review. Returns the review as JSON with summary, errors, warnings, suggestions and goodPractices."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code to review")),
		mcp.WithString("provider", mcp.Description("AI provider name (see crv_list_providers); defaults to the configured provider")),
		mcp.WithString("file_name", mcp.Description("File name, used for the report and language detection")),
	)
	return tool, s.handleSubmitReview
}

func (s *Server) handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}

	s.session.SetCode(code)
	s.session.SetFileName(request.GetString("file_name", ""))
	if provider := request.GetString("provider", ""); provider != "" {
		s.session.SetProvider(provider)
	}

	rev, err := s.session.Submit(ctx)
	if err != nil {
		return errorResult("review code", err), nil
	}
	return jsonResult(rev)
}

// crv_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_list_reviews",
		mcp.WithDescription("List past reviews, newest first. Optionally filter by a search term (matched against summary and file name) and provider."),
		mcp.WithString("search", mcp.Description("Case-insensitive text to find in summary or file name")),
		mcp.WithString("provider", mcp.Description(`Exact provider name, or "all"`)),
		mcp.WithBoolean("refresh", mcp.Description("Reload history from the review service first (default true)")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if request.GetBool("refresh", true) {
		// A failed load leaves an empty history; the listing still succeeds.
		_ = s.history.Load(ctx)
	}

	type reviewOut struct {
		ID          string `json:"id"`
		Provider    string `json:"provider"`
		FileName    string `json:"file_name,omitempty"`
		Summary     string `json:"summary"`
		TotalIssues int    `json:"total_issues"`
		Success     bool   `json:"success"`
		ReviewTime  string `json:"review_time,omitempty"`
	}

	reviews := s.history.Filter(request.GetString("search", ""), request.GetString("provider", history.AllProviders))
	out := make([]reviewOut, len(reviews))
	for i, r := range reviews {
		out[i] = reviewOut{
			ID:          r.ID,
			Provider:    r.AIProvider,
			FileName:    r.FileName,
			Summary:     r.Summary,
			TotalIssues: r.IssueCount(),
			Success:     r.Success,
		}
		if !r.ReviewTime.IsZero() {
			out[i].ReviewTime = r.ReviewTime.Format("2006-01-02T15:04:05Z07:00")
		}
	}
	return jsonResult(out)
}

// crv_review_stats
func (s *Server) reviewStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_review_stats",
		mcp.WithDescription("Aggregate finding counts over the loaded review history, with a per-provider breakdown. Not affected by list filters."),
	)
	return tool, s.handleReviewStats
}

func (s *Server) handleReviewStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.history.Statistics())
}

// crv_export_report
func (s *Server) exportReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_export_report",
		mcp.WithDescription("Render a review as a plain-text report. Without an id, exports the review most recently submitted in this session, including its code."),
		mcp.WithString("id", mcp.Description("Review ID from crv_list_reviews")),
	)
	return tool, s.handleExportReport
}

func (s *Server) handleExportReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		exp, err := s.session.ExportCurrent()
		if err != nil {
			return errorResult("export report", err), nil
		}
		return mcp.NewToolResultText(exp.Content), nil
	}

	_, doc, err := s.history.Export(ctx, id)
	if err != nil {
		return errorResult("export report", err), nil
	}
	return mcp.NewToolResultText(doc), nil
}

// crv_delete_review
func (s *Server) deleteReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_delete_review",
		mcp.WithDescription("Delete a review from the review service and local history."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Review ID")),
	)
	return tool, s.handleDeleteReview
}

func (s *Server) handleDeleteReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.history.Delete(ctx, id); err != nil {
		return errorResult("delete review", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted review %s", id)), nil
}

// crv_list_providers
func (s *Server) listProvidersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crv_list_providers",
		mcp.WithDescription("List the AI providers that reviews can be submitted to."),
	)
	return tool, s.handleListProviders
}

func (s *Server) handleListProviders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Providers(ctx))
}
