package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// failingKV is a store whose every call fails.
type failingKV struct{ store.Store }

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingKV) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingKV) Delete(context.Context, string) error { return errors.New("disk on fire") }

func TestLoad_EmptyReturnsDefaults(t *testing.T) {
	s := NewStore(setupTestStore(t), nil)

	got := s.Load(context.Background())
	assert.Equal(t, models.Settings{
		APIKey:          "",
		DefaultProvider: "OpenAI GPT-4",
		AutoSave:        true,
		Theme:           "light",
		DemoModeEnabled: true,
	}, got)
}

func TestLoad_CorruptReturnsDefaults(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, "{not json"))

	assert.Equal(t, models.DefaultSettings(), NewStore(kv, nil).Load(ctx))
}

func TestLoad_ReadErrorReturnsDefaults(t *testing.T) {
	s := NewStore(failingKV{}, nil)
	assert.Equal(t, models.DefaultSettings(), s.Load(context.Background()))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := NewStore(setupTestStore(t), nil)
	ctx := context.Background()

	want := models.Settings{
		APIKey:          "sk-test",
		DefaultProvider: "Anthropic Claude",
		AutoSave:        false,
		Theme:           "dark",
		DemoModeEnabled: false,
	}
	require.NoError(t, s.Save(ctx, want))
	assert.Equal(t, want, s.Load(ctx))
}

func TestLoad_PartialRecordKeepsDefaults(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, `{"theme":"dark"}`))

	got := NewStore(kv, nil).Load(ctx)
	want := models.DefaultSettings()
	want.Theme = "dark"
	assert.Equal(t, want, got)
}

func TestLoad_LegacyFieldNames(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, `{"openaiApiKey":"sk-old","defaultProvider":"OpenAI GPT-4","autoSave":true,"theme":"auto","demoMode":false}`))

	got := NewStore(kv, nil).Load(ctx)
	assert.Equal(t, "sk-old", got.APIKey)
	assert.Equal(t, "auto", got.Theme)
	assert.False(t, got.DemoModeEnabled)
}

func TestLoad_InvalidFieldFallsBackToDefault(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, `{"apiKey":"sk-1","defaultProvider":"  ","autoSave":false,"theme":"purple","demoModeEnabled":false}`))
	s := NewStore(kv, nil)

	got := s.Load(ctx)
	assert.Equal(t, models.Settings{
		APIKey:          "sk-1",
		DefaultProvider: models.DefaultProvider,
		AutoSave:        false,
		Theme:           models.ThemeLight,
		DemoModeEnabled: false,
	}, got)

	// The loaded record is saveable again.
	got.AutoSave = true
	require.NoError(t, s.Save(ctx, got))
	assert.True(t, s.Load(ctx).AutoSave)
	assert.Equal(t, models.ThemeLight, s.Load(ctx).Theme)
}

func TestSave_RejectsInvalid(t *testing.T) {
	s := NewStore(setupTestStore(t), nil)
	ctx := context.Background()

	st := models.DefaultSettings()
	st.Theme = "neon"
	err := s.Save(ctx, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)

	st = models.DefaultSettings()
	st.DefaultProvider = ""
	assert.ErrorIs(t, s.Save(ctx, st), models.ErrValidation)

	// Nothing was persisted.
	assert.Equal(t, models.DefaultSettings(), s.Load(ctx))
}

func TestSave_StorageError(t *testing.T) {
	s := NewStore(failingKV{}, nil)
	err := s.Save(context.Background(), models.DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save settings")
}

func TestReset(t *testing.T) {
	kv := setupTestStore(t)
	s := NewStore(kv, nil)
	ctx := context.Background()

	st := models.DefaultSettings()
	st.Theme = "dark"
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)

	_, ok, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.False(t, ok, "reset clears persisted state")
}
