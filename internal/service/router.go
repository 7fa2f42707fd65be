package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/joescharf/crv/internal/models"
)

// DirectReviewer submits code straight to a provider's own API, bypassing
// the review service.
type DirectReviewer interface {
	Provider() string
	Review(ctx context.Context, req SubmitRequest) (models.Review, error)
}

// Router sends submissions for the direct provider to it and everything
// else to the remote service. Direct results are kept in the local store,
// when one is set, and merged into every listing, lookup and delete.
type Router struct {
	Service

	mu     sync.RWMutex
	direct DirectReviewer
	local  *LocalReviews
}

var _ Service = (*Router)(nil)

// NewRouter wraps remote. A nil direct reviewer makes the router a
// pass-through.
func NewRouter(remote Service, direct DirectReviewer) *Router {
	return &Router{Service: remote, direct: direct}
}

// SetDirect replaces the direct reviewer; nil disables the direct path.
func (r *Router) SetDirect(direct DirectReviewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = direct
}

// SetLocal sets where direct results are kept; nil keeps none.
func (r *Router) SetLocal(local *LocalReviews) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = local
}

func (r *Router) directReviewer() DirectReviewer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.direct
}

func (r *Router) localReviews() *LocalReviews {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}

func (r *Router) SubmitReview(ctx context.Context, req SubmitRequest) (models.Review, error) {
	if direct := r.directReviewer(); direct != nil && req.Provider == direct.Provider() {
		rev, err := direct.Review(ctx, req)
		if err != nil {
			if models.IsServiceFailure(err) {
				return models.Review{}, err
			}
			return models.Review{}, models.NewServiceFailure("direct review", "", models.GenericFailureMessage, err)
		}
		rev = rev.Normalize()
		if local := r.localReviews(); local != nil && rev.Success {
			if err := local.Save(ctx, rev); err != nil {
				return models.Review{}, models.NewServiceFailure("direct review", "", "Failed to save review", err)
			}
		}
		return rev, nil
	}
	return r.Service.SubmitReview(ctx, req)
}

func (r *Router) ListRecentReviews(ctx context.Context) ([]models.Review, error) {
	remote, err := r.Service.ListRecentReviews(ctx)
	if err != nil {
		return nil, err
	}
	return r.mergeLocal(ctx, remote, func(models.Review) bool { return true })
}

func (r *Router) ListAllReviews(ctx context.Context) ([]models.Review, error) {
	remote, err := r.Service.ListAllReviews(ctx)
	if err != nil {
		return nil, err
	}
	return r.mergeLocal(ctx, remote, func(models.Review) bool { return true })
}

func (r *Router) ListReviewsByProvider(ctx context.Context, provider string) ([]models.Review, error) {
	remote, err := r.Service.ListReviewsByProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	return r.mergeLocal(ctx, remote, func(rev models.Review) bool { return rev.AIProvider == provider })
}

func (r *Router) SearchReviews(ctx context.Context, keyword string) ([]models.Review, error) {
	remote, err := r.Service.SearchReviews(ctx, keyword)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	return r.mergeLocal(ctx, remote, func(rev models.Review) bool {
		return strings.Contains(strings.ToLower(rev.Summary), kw)
	})
}

func (r *Router) GetReview(ctx context.Context, id string) (models.Review, error) {
	if local := r.localReviews(); local != nil {
		rev, ok, err := local.Get(ctx, id)
		if err != nil {
			return models.Review{}, models.NewServiceFailure("get review", "", "Failed to fetch review", err)
		}
		if ok {
			return rev, nil
		}
	}
	return r.Service.GetReview(ctx, id)
}

// DeleteReview removes a local review without contacting the service.
func (r *Router) DeleteReview(ctx context.Context, id string) error {
	if local := r.localReviews(); local != nil {
		ok, err := local.Delete(ctx, id)
		if err != nil {
			return models.NewServiceFailure("delete review", "", "Failed to delete review", err)
		}
		if ok {
			return nil
		}
	}
	return r.Service.DeleteReview(ctx, id)
}

// mergeLocal interleaves the kept local reviews matching keep into remote by
// reviewTime, leaving the remote order untouched. A local review shadows a
// remote one with the same id.
func (r *Router) mergeLocal(ctx context.Context, remote []models.Review, keep func(models.Review) bool) ([]models.Review, error) {
	local := r.localReviews()
	if local == nil {
		return remote, nil
	}
	all, err := local.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local reviews: %w", err)
	}
	held := slices.DeleteFunc(all, func(rev models.Review) bool { return !keep(rev) })
	if len(held) == 0 {
		return remote, nil
	}

	seen := make(map[string]bool, len(held))
	for _, rev := range held {
		seen[rev.ID] = true
	}
	out := make([]models.Review, 0, len(remote)+len(held))
	i := 0
	for _, rev := range remote {
		if seen[rev.ID] {
			continue
		}
		for i < len(held) && held[i].ReviewTime.After(rev.ReviewTime) {
			out = append(out, held[i])
			i++
		}
		out = append(out, rev)
	}
	return append(out, held[i:]...), nil
}
