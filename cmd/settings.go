package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/crv/internal/llm"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change local review settings",
	Long: `Show or change the settings stored in the local database:
apiKey, defaultProvider, autoSave, theme and demoModeEnabled.

Running bare 'crv settings' is the same as 'crv settings show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd.Context())
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd.Context())
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "Change one or more settings",
	Long: `Change one or more settings. All changes are validated and saved together.

Keys: apiKey, defaultProvider, autoSave, theme (light, dark, auto),
demoModeEnabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsSetRun(cmd.Context(), args)
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsResetRun(cmd.Context())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsStore() (*settings.Store, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return settings.NewStore(s, logger), nil
}

func printSettings(st models.Settings) error {
	st = st.Redacted()
	table := ui.Table([]string{"SETTING", "VALUE"})
	rows := [][]string{
		{"apiKey", orUnset(st.APIKey)},
		{"defaultProvider", st.DefaultProvider},
		{"autoSave", strconv.FormatBool(st.AutoSave)},
		{"theme", st.Theme},
		{"demoModeEnabled", strconv.FormatBool(st.DemoModeEnabled)},
	}
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func settingsShowRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := settingsStore()
	if err != nil {
		return err
	}
	return printSettings(st.Load(ctx))
}

// applySetting sets one key on st.
func applySetting(st *models.Settings, key, value string) error {
	switch strings.ToLower(key) {
	case "apikey", "api_key":
		st.APIKey = value
	case "defaultprovider", "default_provider", "provider":
		st.DefaultProvider = strings.TrimSpace(value)
	case "theme":
		st.Theme = strings.ToLower(value)
	case "autosave", "auto_save":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &models.ValidationError{Field: "autoSave", Reason: fmt.Sprintf("autoSave must be true or false, got %q", value)}
		}
		st.AutoSave = b
	case "demomodeenabled", "demo_mode_enabled", "demomode":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &models.ValidationError{Field: "demoModeEnabled", Reason: fmt.Sprintf("demoModeEnabled must be true or false, got %q", value)}
		}
		st.DemoModeEnabled = b
	default:
		return &models.ValidationError{Field: key, Reason: fmt.Sprintf("unknown setting %q", key)}
	}
	return nil
}

func settingsSetRun(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := settingsStore()
	if err != nil {
		return err
	}

	current := st.Load(ctx)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return &models.ValidationError{Field: arg, Reason: fmt.Sprintf("expected KEY=VALUE, got %q", arg)}
		}
		if err := applySetting(&current, key, value); err != nil {
			return err
		}
	}
	if err := st.Save(ctx, current); err != nil {
		return err
	}

	ui.Success("Settings saved")
	if current.DirectProviderEnabled() {
		ui.Info("Direct reviews enabled for provider %q", llm.Provider)
	}
	return printSettings(current)
}

func settingsResetRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := settingsStore()
	if err != nil {
		return err
	}
	defaults, err := st.Reset(ctx)
	if err != nil {
		return err
	}
	ui.Success("Settings reset to defaults")
	return printSettings(defaults)
}
