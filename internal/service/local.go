package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/store"
)

// localKeyPrefix namespaces direct-provider reviews in the key-value store.
const localKeyPrefix = "directReview:"

// LocalReviews keeps reviews the review service never saw, i.e. those
// produced by the direct provider, in the local store.
type LocalReviews struct {
	kv store.Store
}

// NewLocalReviews stores reviews in kv.
func NewLocalReviews(kv store.Store) *LocalReviews {
	return &LocalReviews{kv: kv}
}

func localKey(id string) string { return localKeyPrefix + id }

// Save writes r under its id, replacing any previous copy.
func (l *LocalReviews) Save(ctx context.Context, r models.Review) error {
	if r.ID == "" {
		return fmt.Errorf("save local review: missing id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode review %s: %w", r.ID, err)
	}
	return l.kv.Set(ctx, localKey(r.ID), string(data))
}

// Get returns the review with id and whether it is held locally.
func (l *LocalReviews) Get(ctx context.Context, id string) (models.Review, bool, error) {
	raw, ok, err := l.kv.Get(ctx, localKey(id))
	if err != nil || !ok {
		return models.Review{}, false, err
	}
	r, err := decodeReview([]byte(raw))
	if err != nil {
		return models.Review{}, false, err
	}
	return r, true, nil
}

// Delete removes id and reports whether it was held locally.
func (l *LocalReviews) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := l.kv.Get(ctx, localKey(id))
	if err != nil || !ok {
		return false, err
	}
	return true, l.kv.Delete(ctx, localKey(id))
}

// List returns every local review, newest first. Unreadable entries are
// skipped.
func (l *LocalReviews) List(ctx context.Context) ([]models.Review, error) {
	keys, err := l.kv.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Review{}
	for _, k := range keys {
		id, ok := strings.CutPrefix(k, localKeyPrefix)
		if !ok {
			continue
		}
		r, found, err := l.Get(ctx, id)
		if err != nil || !found {
			continue
		}
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out, nil
}

// sortNewestFirst orders by reviewTime descending, keeping the input order
// for equal times.
func sortNewestFirst(reviews []models.Review) {
	slices.SortStableFunc(reviews, func(a, b models.Review) int {
		return b.ReviewTime.Compare(a.ReviewTime)
	})
}
