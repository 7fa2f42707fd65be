// Package session owns the compose, submit, result lifecycle of one review
// attempt.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/report"
	"github.com/joescharf/crv/internal/service"
)

// State is a Controller lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// HistorySink is notified of every completed review.
type HistorySink interface {
	Add(review models.Review)
}

// Snapshot is a read-only view of the controller for presentation.
type Snapshot struct {
	State    State          `json:"state"`
	Code     string         `json:"code"`
	FileName string         `json:"fileName"`
	Provider string         `json:"provider"`
	Result   *models.Review `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Export is a rendered report ready to be saved.
type Export struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

// Controller is the review session state machine:
//
//	Idle -> Submitting -> Completed | Failed
//
// with Clear and every new submission starting over. At most one
// submission is in flight at a time; Clear does not cancel it.
type Controller struct {
	svc      service.Service
	history  HistorySink
	logger   *slog.Logger
	now      func() time.Time
	autoSave bool

	mu       sync.Mutex
	state    State
	inFlight bool
	// generation increments on Clear and on every submission so a response
	// that lands after a Clear does not resurrect a result.
	generation uint64

	code     string
	fileName string
	provider string

	result        *models.Review
	submittedCode string
	lastErr       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for report generation times.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller. The draft provider starts at the settings'
// default provider; AutoSave decides whether completed reviews reach hist.
func New(svc service.Service, hist HistorySink, st models.Settings, opts ...Option) *Controller {
	c := &Controller{
		svc:      svc,
		history:  hist,
		logger:   logging.Discard(),
		now:      time.Now,
		autoSave: st.AutoSave,
		state:    StateIdle,
		provider: st.DefaultProvider,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplySettings picks up changed settings. The autoSave flag applies to
// the next completed review; an empty draft provider takes the new default.
func (c *Controller) ApplySettings(st models.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSave = st.AutoSave
	if c.provider == "" {
		c.provider = st.DefaultProvider
	}
}

// SetCode replaces the draft code.
func (c *Controller) SetCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
}

// SetFileName replaces the draft file name.
func (c *Controller) SetFileName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileName = name
}

// SetProvider replaces the draft provider.
func (c *Controller) SetProvider(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = strings.TrimSpace(id)
}

// Providers asks the service which providers can be selected.
func (c *Controller) Providers(ctx context.Context) []string {
	return c.svc.ListProviders(ctx)
}

// Submit sends the draft to the review service and waits for the outcome.
//
// It fails with a ValidationError before any network call when the code is
// blank or no provider is selected, and with ErrBusy while another
// submission is in flight. A structured failure or a failed call moves the
// controller to Failed and returns a ServiceFailure.
func (c *Controller) Submit(ctx context.Context) (models.Review, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return models.Review{}, models.ErrBusy
	}
	if strings.TrimSpace(c.code) == "" {
		c.mu.Unlock()
		return models.Review{}, &models.ValidationError{Field: "code", Reason: "please enter or load code to review"}
	}
	if c.provider == "" {
		c.mu.Unlock()
		return models.Review{}, &models.ValidationError{Field: "provider", Reason: "please select an AI provider"}
	}

	req := service.SubmitRequest{Code: c.code, Provider: c.provider, FileName: c.fileName}
	c.inFlight = true
	c.state = StateSubmitting
	c.result = nil
	c.submittedCode = ""
	c.lastErr = nil
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.logger.Info("submitting review", "provider", req.Provider, "file", req.FileName, "bytes", len(req.Code))
	rev, err := c.svc.SubmitReview(ctx, req)

	var outcome error
	switch {
	case err != nil:
		if !models.IsServiceFailure(err) {
			err = models.NewServiceFailure("submit review", "", models.GenericFailureMessage, err)
		}
		outcome = err
	case !rev.Success:
		outcome = models.NewServiceFailure("submit review", rev.ErrorMessage, "Review failed", nil)
	}

	c.mu.Lock()
	c.inFlight = false
	current := gen == c.generation
	if current {
		if outcome != nil {
			c.state = StateFailed
			c.lastErr = outcome
		} else {
			c.state = StateCompleted
			stored := rev
			c.result = &stored
			c.submittedCode = req.Code
		}
	}
	notify := outcome == nil && c.autoSave && c.history != nil
	c.mu.Unlock()

	if outcome != nil {
		c.logger.Warn("review failed", "provider", req.Provider, "error", outcome)
		return models.Review{}, outcome
	}

	c.logger.Info("review completed", "id", rev.ID, "issues", rev.IssueCount(), "current", current)
	if notify {
		c.history.Add(rev)
	}
	return rev, nil
}

// Clear returns to Idle and discards the draft and the current result.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.generation++
	c.code = ""
	c.fileName = ""
	c.result = nil
	c.submittedCode = ""
	c.lastErr = nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the completed result, if any.
func (c *Controller) Current() (models.Review, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCompleted || c.result == nil {
		return models.Review{}, false
	}
	return *c.result, true
}

// Err returns the failure that put the controller in Failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the controller's state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:    c.state,
		Code:     c.code,
		FileName: c.fileName,
		Provider: c.provider,
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// ExportCurrent renders the completed result, including the code that was
// submitted for it. It fails with ErrNoResult outside Completed.
func (c *Controller) ExportCurrent() (Export, error) {
	c.mu.Lock()
	if c.state != StateCompleted || c.result == nil {
		c.mu.Unlock()
		return Export{}, models.ErrNoResult
	}
	r := *c.result
	code := c.submittedCode
	c.mu.Unlock()

	return Export{
		FileName: report.FileName(r.ID),
		Content: report.Generate(r, report.Options{
			GeneratedAt: c.now(),
			IncludeCode: true,
			Code:        code,
		}),
	}, nil
}
