package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crv/internal/api"
	"github.com/joescharf/crv/internal/daemon"
	"github.com/joescharf/crv/internal/models"
	webui "github.com/joescharf/crv/internal/ui"
)

var serveForce bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API for a browser UI",
	Long: `Start the local REST API in the foreground.

The API exposes settings, the review session and review history under
/api/v1. By default it listens on port 3000. Use --port to change it, or
'crv serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 3000, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
	serveStopCmd.Flags().BoolVar(&serveForce, "force", false, "Kill the server instead of asking it to shut down")

	serveCmd.AddCommand(serveStartCmd, serveStopCmd, serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "crv-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "crv-serve.log")
}

func serveAddr() string {
	return net.JoinHostPort("localhost", strconv.Itoa(viper.GetInt("port")))
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer func() { _ = pf.Release() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if err := a.history.Load(ctx); err != nil {
		logger.Warn("initial history load failed", "error", err)
	}

	srv := api.NewServer(a.settings, a.session, a.history, logger)
	srv.OnSettingsChange(func(st models.Settings) { applyDirect(a.router, st) })

	handler, err := webui.Mount(srv.Router())
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              serveAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	ui.Info("Serving UI at http://%s (API under /api/v1)", httpSrv.Addr)
	logger.Info("api server started", "addr", httpSrv.Addr, "service", viper.GetString("service.url"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("api server stopping")
	return httpSrv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	if err := os.MkdirAll(viper.GetString("state_dir"), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, "serve", "--port", strconv.Itoa(viper.GetInt("port")))
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		child.Args = append(child.Args, "--config", cfg)
	}
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Server started (pid %d) at http://%s", child.Process.Pid, serveAddr())
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("server is not running")
	}

	sig := sigTERM()
	if serveForce {
		sig = sigKILL()
	}
	if err := pf.Signal(sig); err != nil {
		return err
	}
	ui.Success("Stopped server (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server is running (pid %d) at http://%s", pid, serveAddr())
	return nil
}
