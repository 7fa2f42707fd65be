package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/service"
	"github.com/joescharf/crv/internal/service/servicetest"
	"github.com/joescharf/crv/internal/store"
)

type fixedDirect struct{}

func (fixedDirect) Provider() string { return "Anthropic Claude" }

func (fixedDirect) Review(_ context.Context, req service.SubmitRequest) (models.Review, error) {
	return models.Review{
		ID:         "01JDIRECT",
		AIProvider: req.Provider,
		ReviewTime: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		Summary:    "Direct review",
		Success:    true,
	}, nil
}

func directRouter(t *testing.T, fake *servicetest.Fake) *service.Router {
	t.Helper()
	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, kv.Migrate(context.Background()))
	t.Cleanup(func() { _ = kv.Close() })

	r := service.NewRouter(fake, fixedDirect{})
	r.SetLocal(service.NewLocalReviews(kv))
	return r
}

func TestDirectReview_SurvivesLoadAndCanBeDeleted(t *testing.T) {
	ctx := context.Background()
	fake := servicetest.New(sampleReviews()...)
	router := directRouter(t, fake)
	m := NewManager(router, nil)

	rev, err := router.SubmitReview(ctx, service.SubmitRequest{Code: "x", Provider: "Anthropic Claude"})
	require.NoError(t, err)
	m.Add(rev)

	require.NoError(t, m.Load(ctx))
	assert.Equal(t, []string{"01JDIRECT", "3", "2", "1"}, ids(m.View()), "a reload keeps the direct review")

	require.NoError(t, m.Delete(ctx, "01JDIRECT"))
	assert.Equal(t, []string{"3", "2", "1"}, ids(m.View()))
	assert.Empty(t, fake.DeleteCalls)

	require.NoError(t, m.Load(ctx))
	assert.Equal(t, []string{"3", "2", "1"}, ids(m.View()), "a deleted direct review stays deleted")

	_, err = m.Lookup(ctx, "01JDIRECT")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
