package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
)

// DefaultBaseURL is where the review service listens unless configured.
const DefaultBaseURL = "http://localhost:8080/api"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Client implements Service over the review service's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ Service = (*Client)(nil)

// NewClient creates a review service client. Timeouts belong to the
// transport; a zero timeout means none.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) SubmitReview(ctx context.Context, req SubmitRequest) (models.Review, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return models.Review{}, models.NewServiceFailure("submit review", "", models.GenericFailureMessage, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/reviews/review", bytes.NewReader(payload))
	if err != nil {
		return models.Review{}, models.NewServiceFailure("submit review", "", models.GenericFailureMessage, err)
	}
	if status < 200 || status > 299 {
		return models.Review{}, models.NewServiceFailure("submit review", failureMessage(body), models.GenericFailureMessage, statusError(status))
	}

	r, err := decodeReview(body)
	if err != nil {
		return models.Review{}, models.NewServiceFailure("submit review", "", models.GenericFailureMessage, err)
	}
	if !r.Success && r.ErrorMessage == "" {
		r.ErrorMessage = "Review failed"
	}
	return r, nil
}

func (c *Client) ListRecentReviews(ctx context.Context) ([]models.Review, error) {
	return c.listReviews(ctx, "/reviews/recent", "Failed to fetch recent reviews")
}

func (c *Client) ListAllReviews(ctx context.Context) ([]models.Review, error) {
	return c.listReviews(ctx, "/reviews", "Failed to fetch reviews")
}

func (c *Client) ListReviewsByProvider(ctx context.Context, provider string) ([]models.Review, error) {
	return c.listReviews(ctx, "/reviews/provider/"+url.PathEscape(provider), "Failed to fetch reviews by provider")
}

func (c *Client) SearchReviews(ctx context.Context, keyword string) ([]models.Review, error) {
	return c.listReviews(ctx, "/reviews/search?keyword="+url.QueryEscape(keyword), "Failed to search reviews")
}

func (c *Client) GetReview(ctx context.Context, id string) (models.Review, error) {
	if strings.TrimSpace(id) == "" {
		return models.Review{}, fmt.Errorf("%w: empty id", models.ErrNotFound)
	}
	status, body, err := c.do(ctx, http.MethodGet, "/reviews/"+url.PathEscape(id), nil)
	if err != nil {
		return models.Review{}, models.NewServiceFailure("get review", "", "Failed to fetch review", err)
	}
	if status == http.StatusNotFound {
		return models.Review{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if status < 200 || status > 299 {
		return models.Review{}, models.NewServiceFailure("get review", failureMessage(body), "Failed to fetch review", statusError(status))
	}
	r, err := decodeReview(body)
	if err != nil {
		return models.Review{}, models.NewServiceFailure("get review", "", "Failed to fetch review", err)
	}
	return r, nil
}

func (c *Client) DeleteReview(ctx context.Context, id string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/reviews/"+url.PathEscape(id), nil)
	if err != nil {
		return models.NewServiceFailure("delete review", "", "Failed to delete review", err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if status < 200 || status > 299 {
		return models.NewServiceFailure("delete review", failureMessage(body), "Failed to delete review", statusError(status))
	}
	return nil
}

func (c *Client) ListProviders(ctx context.Context) []string {
	fallback := []string{models.DefaultProvider}

	status, body, err := c.do(ctx, http.MethodGet, "/reviews/providers", nil)
	if err != nil {
		c.logger.Warn("list providers, using fallback", "error", err)
		return fallback
	}
	if status < 200 || status > 299 {
		c.logger.Warn("list providers, using fallback", "status", status)
		return fallback
	}

	var providers []string
	if err := json.Unmarshal(body, &providers); err != nil {
		c.logger.Warn("decode providers, using fallback", "error", err)
		return fallback
	}

	out := providers[:0]
	for _, p := range providers {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (c *Client) Statistics(ctx context.Context) (models.ServiceStatistics, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/reviews/stats", nil)
	if err != nil {
		return models.ServiceStatistics{}, models.NewServiceFailure("statistics", "", "Failed to fetch statistics", err)
	}
	if status < 200 || status > 299 {
		return models.ServiceStatistics{}, models.NewServiceFailure("statistics", failureMessage(body), "Failed to fetch statistics", statusError(status))
	}
	var ws wireStats
	if err := json.Unmarshal(body, &ws); err != nil {
		return models.ServiceStatistics{}, models.NewServiceFailure("statistics", "", "Failed to fetch statistics", err)
	}
	return ws.toModel(), nil
}

func (c *Client) listReviews(ctx context.Context, path, failMsg string) ([]models.Review, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, models.NewServiceFailure("list reviews", "", failMsg, err)
	}
	if status < 200 || status > 299 {
		return nil, models.NewServiceFailure("list reviews", failureMessage(body), failMsg, statusError(status))
	}
	reviews, err := decodeReviews(body)
	if err != nil {
		return nil, models.NewServiceFailure("list reviews", "", failMsg, err)
	}
	return reviews, nil
}

// do performs one request and returns the status and body. A non-nil error
// means no response was received.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("review service request failed", "method", method, "path", path, "error", err)
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("review service request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.StatusCode, data, nil
}

var errUnexpectedStatus = errors.New("unexpected status")

func statusError(status int) error {
	return fmt.Errorf("%w: %d %s", errUnexpectedStatus, status, http.StatusText(status))
}
