package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/service/servicetest"
)

func sampleReviews() []models.Review {
	return []models.Review{
		{ID: "3", AIProvider: "OpenAI GPT-4", FileName: "Main.java", Summary: "Null check missing", Errors: []string{"NPE"}, Warnings: []string{"unused"}, TotalIssues: 2, Success: true},
		{ID: "2", AIProvider: "Google Gemini", FileName: "util.py", Summary: "Looks fine", GoodPractices: []string{"typed"}, TotalIssues: 0, Success: true},
		{ID: "1", AIProvider: "OpenAI GPT-4", FileName: "app.js", Summary: "Callback hell in main loop", Suggestions: []string{"use async"}, TotalIssues: 1, Success: true},
	}
}

func loaded(t *testing.T, fake *servicetest.Fake) *Manager {
	t.Helper()
	m := NewManager(fake, nil)
	require.NoError(t, m.Load(context.Background()))
	return m
}

func ids(reviews []models.Review) []string {
	out := make([]string, len(reviews))
	for i, r := range reviews {
		out[i] = r.ID
	}
	return out
}

func TestLoad(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	assert.Equal(t, []string{"3", "2", "1"}, ids(m.All()))
	assert.Equal(t, []string{"3", "2", "1"}, ids(m.View()))
}

func TestLoad_FailureDegradesToEmpty(t *testing.T) {
	fake := servicetest.New(sampleReviews()...)
	m := loaded(t, fake)

	fake.ListErr = errors.New("connection refused")
	err := m.Load(context.Background())
	assert.Error(t, err)
	assert.Empty(t, m.All())
	assert.Empty(t, m.View())
	assert.Equal(t, 0, m.Statistics().TotalReviews)
}

func TestAdd_PrependsAndIsIdempotent(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))

	m.Add(models.Review{ID: "4", AIProvider: "OpenAI GPT-4", Summary: "new", Success: true})
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(m.All()))

	m.Add(models.Review{ID: "4", AIProvider: "OpenAI GPT-4", Summary: "again", Success: true})
	m.Add(models.Review{ID: "2", Summary: "dup", Success: true})
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(m.All()))

	got, err := m.Get("4")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Summary)
}

func TestDelete_RemovesAfterConfirmation(t *testing.T) {
	fake := servicetest.New(sampleReviews()...)
	m := loaded(t, fake)

	require.NoError(t, m.Delete(context.Background(), "2"))
	assert.Equal(t, []string{"2"}, fake.DeleteCalls)
	assert.Equal(t, []string{"3", "1"}, ids(m.All()))
}

func TestDelete_FailureKeepsEntry(t *testing.T) {
	fake := servicetest.New(sampleReviews()...)
	m := loaded(t, fake)
	fake.DeleteErr = errors.New("503 service unavailable")

	err := m.Delete(context.Background(), "2")
	require.Error(t, err)
	assert.True(t, models.IsServiceFailure(err))
	assert.Equal(t, "Failed to delete review", err.Error())
	assert.Equal(t, []string{"3", "2", "1"}, ids(m.All()))
}

func TestDelete_UnknownID(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	err := m.Delete(context.Background(), "99")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, m.All(), 3)

	err = m.Delete(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFilter(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))

	tests := []struct {
		name     string
		search   string
		provider string
		want     []string
	}{
		{"everything", "", AllProviders, []string{"3", "2", "1"}},
		{"empty provider means all", "", "", []string{"3", "2", "1"}},
		{"summary match is case-insensitive", "NULL", AllProviders, []string{"3"}},
		{"file name match", ".py", AllProviders, []string{"2"}},
		{"term in either field", "main", AllProviders, []string{"3", "1"}},
		{"provider exact", "", "OpenAI GPT-4", []string{"3", "1"}},
		{"provider is not a substring match", "", "OpenAI", []string{}},
		{"intersection", "main", "Google Gemini", []string{}},
		{"no match", "kotlin", AllProviders, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(m.Filter(tt.search, tt.provider)))
		})
	}
}

func TestFilter_IsPure(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	first := m.Filter("main", AllProviders)
	second := m.Filter("main", AllProviders)
	assert.Equal(t, first, second)
}

func TestFilter_ReappliedAfterChanges(t *testing.T) {
	fake := servicetest.New(sampleReviews()...)
	m := loaded(t, fake)
	m.Filter("", "Google Gemini")
	assert.Equal(t, []string{"2"}, ids(m.View()))

	m.Add(models.Review{ID: "5", AIProvider: "Google Gemini", Summary: "fresh", Success: true})
	assert.Equal(t, []string{"5", "2"}, ids(m.View()))

	require.NoError(t, m.Delete(context.Background(), "2"))
	assert.Equal(t, []string{"5"}, ids(m.View()))

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, Filter{Provider: "Google Gemini"}, m.ActiveFilter())
	assert.Empty(t, m.View())
}

func TestStatistics_IgnoresFilter(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	before := m.Statistics()

	assert.Empty(t, m.Filter("nothing matches this", AllProviders))
	after := m.Statistics()
	assert.Equal(t, before, after)

	assert.Equal(t, 3, after.TotalReviews)
	assert.Equal(t, 1, after.Errors)
	assert.Equal(t, 1, after.Warnings)
	assert.Equal(t, 1, after.Suggestions)
	assert.Equal(t, 1, after.GoodPractices)
	assert.Equal(t, 3, after.TotalIssues)
	require.Len(t, after.Providers, 2)
	assert.Equal(t, models.ProviderStatistics{Provider: "OpenAI GPT-4", Reviews: 2, TotalIssues: 3}, after.Providers[0])
}

func TestProviders(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	assert.Equal(t, []string{"OpenAI GPT-4", "Google Gemini"}, m.Providers())
}

func TestView_DoesNotAlias(t *testing.T) {
	m := loaded(t, servicetest.New(sampleReviews()...))
	v := m.View()
	v[0].Errors[0] = "mutated"
	v[0].Summary = "mutated"

	got, err := m.Get("3")
	require.NoError(t, err)
	assert.Equal(t, "NPE", got.Errors[0])
	assert.Equal(t, "Null check missing", got.Summary)
}

func TestExport(t *testing.T) {
	reviews := sampleReviews()
	reviews[0].ReviewTime = time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)
	fake := servicetest.New(reviews...)
	m := loaded(t, fake)

	name, doc, err := m.Export(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "code-review-3.txt", name)
	assert.Contains(t, doc, "Generated: 2024-03-09 08:30:00 UTC")
	assert.Contains(t, doc, "ERRORS\n------\n1. NPE\n")
	assert.NotContains(t, doc, "ORIGINAL CODE")

	_, _, err = m.Export(context.Background(), "404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLookup_FallsBackToService(t *testing.T) {
	fake := servicetest.New(sampleReviews()...)
	m := NewManager(fake, nil)

	r, err := m.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "app.js", r.FileName)

	_, err = m.Get("1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
