// Package servicetest provides an in-memory review service for tests.
package servicetest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/service"
)

// Fake implements service.Service in memory. Reviews are kept newest first.
// Error fields inject failures; Gate, when set, blocks SubmitReview until a
// value is received or the context ends.
type Fake struct {
	mu sync.Mutex

	Reviews   []models.Review
	Providers []string

	// SubmitResult overrides the review returned by SubmitReview.
	SubmitResult *models.Review

	SubmitErr error
	ListErr   error
	DeleteErr error
	GetErr    error
	StatsErr  error

	Gate chan struct{}
	// Started receives once per SubmitReview call, before Gate is awaited.
	Started chan struct{}

	SubmitCalls []service.SubmitRequest
	DeleteCalls []string
	ListCalls   int

	nextID int
	Now    func() time.Time
}

var _ service.Service = (*Fake)(nil)

// New returns a Fake seeded with reviews (newest first).
func New(reviews ...models.Review) *Fake {
	f := &Fake{
		Providers: []string{models.DefaultProvider},
		nextID:    len(reviews) + 1,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, r := range reviews {
		f.Reviews = append(f.Reviews, r.Normalize())
	}
	return f
}

func (f *Fake) SubmitReview(ctx context.Context, req service.SubmitRequest) (models.Review, error) {
	f.mu.Lock()
	f.SubmitCalls = append(f.SubmitCalls, req)
	gate, started := f.Gate, f.Started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Review{}, models.NewServiceFailure("submit review", "", models.GenericFailureMessage, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubmitErr != nil {
		return models.Review{}, f.SubmitErr
	}
	if f.SubmitResult != nil {
		return f.SubmitResult.Normalize(), nil
	}

	r := models.Review{
		ID:          strconv.Itoa(f.nextID),
		FileName:    req.FileName,
		AIProvider:  req.Provider,
		ReviewTime:  f.Now(),
		Summary:     "Reviewed " + req.FileName,
		Warnings:    []string{"Unused import"},
		Suggestions: []string{"Add documentation"},
		TotalIssues: 2,
		Success:     true,
	}.Normalize()
	f.nextID++
	f.Reviews = append([]models.Review{r}, f.Reviews...)
	return r, nil
}

func (f *Fake) ListRecentReviews(context.Context) ([]models.Review, error) {
	return f.list(func(models.Review) bool { return true })
}

func (f *Fake) ListAllReviews(context.Context) ([]models.Review, error) {
	return f.list(func(models.Review) bool { return true })
}

func (f *Fake) ListReviewsByProvider(_ context.Context, provider string) ([]models.Review, error) {
	return f.list(func(r models.Review) bool { return r.AIProvider == provider })
}

func (f *Fake) SearchReviews(_ context.Context, keyword string) ([]models.Review, error) {
	kw := strings.ToLower(keyword)
	return f.list(func(r models.Review) bool { return strings.Contains(strings.ToLower(r.Summary), kw) })
}

func (f *Fake) GetReview(_ context.Context, id string) (models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return models.Review{}, f.GetErr
	}
	for _, r := range f.Reviews {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Review{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
}

func (f *Fake) DeleteReview(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls = append(f.DeleteCalls, id)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, r := range f.Reviews {
		if r.ID == id {
			f.Reviews = append(f.Reviews[:i:i], f.Reviews[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrNotFound, id)
}

func (f *Fake) ListProviders(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Providers) == 0 {
		return []string{models.DefaultProvider}
	}
	return append([]string(nil), f.Providers...)
}

func (f *Fake) Statistics(context.Context) (models.ServiceStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatsErr != nil {
		return models.ServiceStatistics{}, f.StatsErr
	}
	return models.ServiceStatistics{TotalReviews: int64(len(f.Reviews)), Providers: []models.ServiceProviderStatistics{}}, nil
}

// Submits returns how many times SubmitReview was called.
func (f *Fake) Submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SubmitCalls)
}

func (f *Fake) list(keep func(models.Review) bool) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := []models.Review{}
	for _, r := range f.Reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
