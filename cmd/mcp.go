package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	crvmcp "github.com/joescharf/crv/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents submit code for review and browse review
history. Configure with:

  {
    "mcpServers": {
      "crv": { "command": "crv", "args": ["mcp"] }
    }
  }

Available tools: crv_submit_review, crv_list_reviews, crv_review_stats,
crv_export_report, crv_delete_review, crv_list_providers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if err := a.history.Load(ctx); err != nil {
		logger.Warn("initial history load failed", "error", err)
	}

	logger.Debug("mcp server starting", "version", buildVersion)
	return crvmcp.NewServer(a.session, a.history, buildVersion).ServeStdio(ctx)
}
