package models

// Theme values understood by the presentation layer.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// RedactedKey stands in for a configured API key in displayed settings.
const RedactedKey = "********"

// Settings holds the user's local preferences.
type Settings struct {
	APIKey          string `json:"apiKey"`
	DefaultProvider string `json:"defaultProvider"`
	AutoSave        bool   `json:"autoSave"`
	Theme           string `json:"theme"`
	DemoModeEnabled bool   `json:"demoModeEnabled"`
}

// DefaultSettings returns the hard-coded defaults.
func DefaultSettings() Settings {
	return Settings{
		APIKey:          "",
		DefaultProvider: DefaultProvider,
		AutoSave:        true,
		Theme:           ThemeLight,
		DemoModeEnabled: true,
	}
}

// DirectProviderEnabled reports whether submissions may go straight to the
// provider's own API using APIKey.
func (s Settings) DirectProviderEnabled() bool {
	return s.APIKey != "" && !s.DemoModeEnabled
}

// Redacted returns a copy safe to display, with the API key masked.
func (s Settings) Redacted() Settings {
	if s.APIKey != "" {
		s.APIKey = RedactedKey
	}
	return s
}
