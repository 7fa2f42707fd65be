// Package history holds the session's view of past reviews.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/report"
	"github.com/joescharf/crv/internal/service"
)

// AllProviders is the provider filter that matches every review.
const AllProviders = "all"

// Filter selects a subset of the held reviews.
type Filter struct {
	Search   string `json:"search"`
	Provider string `json:"provider"`
}

func (f Filter) matches(r models.Review) bool {
	if f.Provider != "" && f.Provider != AllProviders && r.AIProvider != f.Provider {
		return false
	}
	term := strings.ToLower(f.Search)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Summary), term) ||
		strings.Contains(strings.ToLower(r.FileName), term)
}

// Manager holds the reviews newest first plus the view produced by the
// active filter. The service stays the source of truth; Load reconciles.
type Manager struct {
	svc    service.Service
	logger *slog.Logger

	mu      sync.Mutex
	reviews []models.Review
	filter  Filter
	view    []models.Review
}

// NewManager creates an empty manager. A nil logger discards output.
func NewManager(svc service.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		svc:     svc,
		logger:  logger,
		reviews: []models.Review{},
		filter:  Filter{Provider: AllProviders},
		view:    []models.Review{},
	}
}

// Load replaces the held reviews with the service's recent reviews. A
// failed fetch leaves the history empty; the error is returned for display
// only and never needs handling.
func (m *Manager) Load(ctx context.Context) error {
	reviews, err := m.svc.ListRecentReviews(ctx)
	if err != nil {
		m.logger.Warn("load history failed", "error", err)
		reviews = nil
	}

	held := make([]models.Review, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		r = r.Normalize()
		if r.ID != "" {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
		}
		held = append(held, r)
	}

	m.mu.Lock()
	m.reviews = held
	m.refilter()
	m.mu.Unlock()

	m.logger.Debug("history loaded", "reviews", len(held))
	return err
}

// Add prepends a newly completed review. A review whose id is already held
// is ignored.
func (m *Manager) Add(r models.Review) {
	r = r.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID != "" && m.indexOf(r.ID) >= 0 {
		return
	}
	m.reviews = append([]models.Review{r}, m.reviews...)
	m.refilter()
}

// Delete asks the service to delete id and removes the local entry only
// once the service confirms.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &models.ValidationError{Field: "id", Reason: "review id is required"}
	}
	if err := m.svc.DeleteReview(ctx, id); err != nil {
		m.logger.Warn("delete review failed", "id", id, "error", err)
		if errors.Is(err, models.ErrNotFound) || models.IsServiceFailure(err) {
			return err
		}
		return models.NewServiceFailure("delete review", "", "Failed to delete review", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		m.reviews = append(m.reviews[:i:i], m.reviews[i+1:]...)
		m.refilter()
	}
	return nil
}

// Filter sets the active filter and returns the resulting view. The view
// keeps the held order. An empty provider is treated as AllProviders.
func (m *Manager) Filter(search, provider string) []models.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = Filter{Search: search, Provider: provider}
	m.refilter()
	return cloneAll(m.view)
}

// ActiveFilter returns the filter currently applied to the view.
func (m *Manager) ActiveFilter() Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// View returns the filtered reviews.
func (m *Manager) View() []models.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.view)
}

// All returns every held review, ignoring the filter.
func (m *Manager) All() []models.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.reviews)
}

// Statistics aggregates every held review. The filter has no effect.
func (m *Manager) Statistics() models.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.ComputeStatistics(m.reviews)
}

// Providers lists the distinct providers of the held reviews in first-seen
// order.
func (m *Manager) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range m.reviews {
		if r.AIProvider == "" || seen[r.AIProvider] {
			continue
		}
		seen[r.AIProvider] = true
		out = append(out, r.AIProvider)
	}
	return out
}

// Get returns a held review.
func (m *Manager) Get(id string) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return models.Review{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return m.reviews[i].Clone(), nil
}

// Lookup returns a held review, falling back to the service for ids not
// held locally.
func (m *Manager) Lookup(ctx context.Context, id string) (models.Review, error) {
	if r, err := m.Get(id); err == nil {
		return r, nil
	}
	r, err := m.svc.GetReview(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || models.IsServiceFailure(err) {
			return models.Review{}, err
		}
		return models.Review{}, models.NewServiceFailure("get review", "", "Failed to fetch review", err)
	}
	return r.Normalize(), nil
}

// Export renders the report for a past review. The generation time is the
// review's own reviewTime and the original code is not included.
func (m *Manager) Export(ctx context.Context, id string) (string, string, error) {
	r, err := m.Lookup(ctx, id)
	if err != nil {
		return "", "", err
	}
	return report.FileName(r.ID), report.Generate(r, report.Options{GeneratedAt: r.ReviewTime}), nil
}

// refilter recomputes the view. Callers hold mu.
func (m *Manager) refilter() {
	view := make([]models.Review, 0, len(m.reviews))
	for _, r := range m.reviews {
		if m.filter.matches(r) {
			view = append(view, r)
		}
	}
	m.view = view
}

func (m *Manager) indexOf(id string) int {
	for i, r := range m.reviews {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []models.Review) []models.Review {
	out := make([]models.Review, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
