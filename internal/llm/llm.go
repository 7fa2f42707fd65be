// Package llm reviews code directly through the Anthropic API, for users
// who configured their own API key instead of relying on the review service.
package llm

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/service"
)

// Provider is the provider name under which direct reviews are offered.
const Provider = "Anthropic Claude"

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

const (
	rawPrefix    = "AI Response (Raw):\n"
	rawWarning   = "Could not parse structured response from AI. Raw response provided above."
	maxTokens    = 2048
	emptyCodeMsg = "no code to review"
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Reviewer implements service.DirectReviewer on top of the Anthropic
// Messages API.
type Reviewer struct {
	api    messageCreator
	model  anthropic.Model
	logger *slog.Logger
	now    func() time.Time
}

var _ service.DirectReviewer = (*Reviewer)(nil)

// NewReviewer creates a reviewer with the given API key and model.
func NewReviewer(apiKey, model string, logger *slog.Logger) *Reviewer {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return newReviewer(&client.Messages, model, logger)
}

func newReviewer(api messageCreator, model string, logger *slog.Logger) *Reviewer {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reviewer{
		api:    api,
		model:  anthropic.Model(model),
		logger: logger,
		now:    time.Now,
	}
}

func (r *Reviewer) Provider() string { return Provider }

// buildPrompt constructs the system and user prompts for a review.
func buildPrompt(code, fileName string) (system string, user string) {
	system = `You are a senior software engineer reviewing source code. Return ONLY a JSON object with these fields:
- "summary": brief overview of the code quality and main issues
- "errors": array of strings, actual errors or bugs
- "warnings": array of strings, potential issues or code smells
- "suggestions": array of strings, improvement suggestions
- "goodPractices": array of strings, good practices already followed

Focus on:
- Syntax errors and compilation issues
- Security vulnerabilities
- Performance issues
- Code style and design
- Error handling
- Documentation and comments

Rules:
- Use an empty array when a category has no entries
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if fileName != "" {
		sb.WriteString("File: ")
		sb.WriteString(fileName)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Code to review:\n\n")
	sb.WriteString(code)
	user = sb.String()
	return
}

// Review sends the code to the model and maps its answer onto a Review.
// An answer that is not the expected JSON still yields a successful review
// carrying the raw text.
func (r *Reviewer) Review(ctx context.Context, req service.SubmitRequest) (models.Review, error) {
	if strings.TrimSpace(req.Code) == "" {
		return models.Review{}, &models.ValidationError{Field: "code", Reason: emptyCodeMsg}
	}
	systemPrompt, userPrompt := buildPrompt(req.Code, req.FileName)

	r.logger.Debug("anthropic review", "model", r.model, "file", req.FileName)
	msg, err := r.api.New(ctx, anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return models.Review{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return models.Review{}, fmt.Errorf("no text content in API response")
	}

	rev := parseReview(text)
	now := r.now()
	rev.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	rev.AIProvider = Provider
	rev.FileName = req.FileName
	rev.ReviewTime = now
	rev.Success = true
	rev.TotalIssues = rev.IssueCount()
	return rev.Normalize(), nil
}

type reviewJSON struct {
	Summary       *string  `json:"summary"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Suggestions   []string `json:"suggestions"`
	GoodPractices []string `json:"goodPractices"`
}

// parseReview decodes the model's answer. Markdown fencing is stripped; an
// answer without a summary is treated as unparseable.
func parseReview(text string) models.Review {
	body := stripFence(text)

	var parsed reviewJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || parsed.Summary == nil {
		return models.Review{
			Summary:  rawPrefix + text,
			Warnings: []string{rawWarning},
		}
	}
	return models.Review{
		Summary:       *parsed.Summary,
		Errors:        parsed.Errors,
		Warnings:      parsed.Warnings,
		Suggestions:   parsed.Suggestions,
		GoodPractices: parsed.GoodPractices,
	}
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
