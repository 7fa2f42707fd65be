// Package settings persists user preferences in the local key-value store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/store"
)

// Key is the storage key holding the serialized Settings record.
const Key = "codeReviewerSettings"

// record is the stored shape. The legacy field names written by the first
// browser client are still accepted on read.
type record struct {
	APIKey          *string `json:"apiKey,omitempty"`
	DefaultProvider *string `json:"defaultProvider,omitempty"`
	AutoSave        *bool   `json:"autoSave,omitempty"`
	Theme           *string `json:"theme,omitempty"`
	DemoModeEnabled *bool   `json:"demoModeEnabled,omitempty"`

	LegacyAPIKey   *string `json:"openaiApiKey,omitempty"`
	LegacyDemoMode *bool   `json:"demoMode,omitempty"`
}

// Store is the Settings Store.
type Store struct {
	kv     store.Store
	logger *slog.Logger
}

// NewStore creates a Settings Store over kv. A nil logger discards output.
func NewStore(kv store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted settings, or the defaults when nothing is
// stored or the stored value cannot be read or parsed. A stored field with
// an invalid value is replaced by its default.
func (s *Store) Load(ctx context.Context) models.Settings {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.logger.Warn("read settings, using defaults", "error", err)
		return models.DefaultSettings()
	}
	if !ok || raw == "" {
		return models.DefaultSettings()
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("stored settings are corrupt, using defaults", "error", err)
		return models.DefaultSettings()
	}
	st := rec.apply(models.DefaultSettings())
	if err := Validate(st); err != nil {
		s.logger.Warn("stored settings are invalid, using defaults", "error", err)
		return models.DefaultSettings()
	}
	return st
}

// Save persists the full record in one write.
func (s *Store) Save(ctx context.Context, st models.Settings) error {
	if err := Validate(st); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Reset clears persisted settings and returns the defaults.
func (s *Store) Reset(ctx context.Context) (models.Settings, error) {
	if err := s.kv.Delete(ctx, Key); err != nil {
		return models.DefaultSettings(), fmt.Errorf("reset settings: %w", err)
	}
	return models.DefaultSettings(), nil
}

// Validate checks a record before it is saved.
func Validate(st models.Settings) error {
	if strings.TrimSpace(st.DefaultProvider) == "" {
		return &models.ValidationError{Field: "defaultProvider", Reason: "default provider must not be empty"}
	}
	if !validTheme(st.Theme) {
		return &models.ValidationError{Field: "theme", Reason: fmt.Sprintf("unknown theme %q (use light, dark or auto)", st.Theme)}
	}
	return nil
}

func validTheme(theme string) bool {
	switch theme {
	case models.ThemeLight, models.ThemeDark, models.ThemeAuto:
		return true
	}
	return false
}

func (r record) apply(st models.Settings) models.Settings {
	if r.LegacyAPIKey != nil {
		st.APIKey = *r.LegacyAPIKey
	}
	if r.APIKey != nil {
		st.APIKey = *r.APIKey
	}
	if r.DefaultProvider != nil && strings.TrimSpace(*r.DefaultProvider) != "" {
		st.DefaultProvider = strings.TrimSpace(*r.DefaultProvider)
	}
	if r.AutoSave != nil {
		st.AutoSave = *r.AutoSave
	}
	if r.Theme != nil && validTheme(*r.Theme) {
		st.Theme = *r.Theme
	}
	if r.LegacyDemoMode != nil {
		st.DemoModeEnabled = *r.LegacyDemoMode
	}
	if r.DemoModeEnabled != nil {
		st.DemoModeEnabled = *r.DemoModeEnabled
	}
	return st
}
