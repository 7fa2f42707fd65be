package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crv/internal/history"
	"github.com/joescharf/crv/internal/llm"
	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/output"
	"github.com/joescharf/crv/internal/service"
	"github.com/joescharf/crv/internal/session"
	"github.com/joescharf/crv/internal/settings"
	"github.com/joescharf/crv/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store

	verbose bool
)

// newRemoteService builds the review service client, replaceable in tests.
var newRemoteService = func() service.Service {
	return service.NewClient(viper.GetString("service.url"), viper.GetDuration("service.timeout"), logger)
}

var rootCmd = &cobra.Command{
	Use:   "crv",
	Short: "Code reviewer - submit code for AI review and manage review history",
	Long: `crv submits source code to an AI code review service, shows the
findings, keeps a browsable history of past reviews and exports them as
plain-text reports. It also serves the same functions over a local REST
API and as MCP tools.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/crv/config.yaml)")
	rootCmd.PersistentFlags().String("service-url", "", "Review service base URL (overrides service.url)")
	_ = viper.BindPFlag("service.url", rootCmd.PersistentFlags().Lookup("service-url"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CRV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "crv.db"))
	viper.SetDefault("service.url", service.DefaultBaseURL)
	viper.SetDefault("service.timeout", "60s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
	viper.SetDefault("port", 3000)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	logger = logging.New(logging.Config{Level: level, Format: viper.GetString("log.format")}, os.Stderr)

	// The store opens lazily so config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// app is the review core wired for one command invocation.
type app struct {
	settings *settings.Store
	prefs    models.Settings
	router   *service.Router
	history  *history.Manager
	session  *session.Controller
}

// newApp loads settings and wires the service, history and session.
func newApp(ctx context.Context) (*app, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	st := settings.NewStore(s, logger)
	prefs := st.Load(ctx)

	router := service.NewRouter(newRemoteService(), nil)
	router.SetLocal(service.NewLocalReviews(s))
	applyDirect(router, prefs)

	hist := history.NewManager(router, logger)
	ctrl := session.New(router, hist, prefs, session.WithLogger(logger))

	return &app{settings: st, prefs: prefs, router: router, history: hist, session: ctrl}, nil
}

// applyDirect enables the direct Anthropic path when settings allow it.
func applyDirect(router *service.Router, prefs models.Settings) {
	if !prefs.DirectProviderEnabled() {
		router.SetDirect(nil)
		return
	}
	router.SetDirect(llm.NewReviewer(prefs.APIKey, viper.GetString("anthropic.model"), logger))
}
