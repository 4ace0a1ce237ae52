package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"aegisrt/internal/catalog"
	"aegisrt/internal/config"
	"aegisrt/internal/engine"
	"aegisrt/internal/lifecycle"
	"aegisrt/pkg/logging"
)

const startSubsystem = "Start"

func newStartCmd() *cobra.Command {
	var mode string
	var addr string
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the engine and serve its status/metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, startupModeFromFlag(mode), addr, shutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "normal", "startup mode: essential-only, fast-start, normal, full")
	cmd.Flags().StringVar(&addr, "addr", ":8885", "address to serve /healthz, /snapshot and /metrics on")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "total budget for graceful shutdown")
	return cmd
}

func startupModeFromFlag(mode string) lifecycle.StartupMode {
	switch mode {
	case "essential-only":
		return lifecycle.EssentialOnly
	case "fast-start":
		return lifecycle.FastStart
	case "full":
		return lifecycle.Full
	default:
		return lifecycle.Normal
	}
}

func runStart(cmd *cobra.Command, mode lifecycle.StartupMode, addr string, shutdownTimeout time.Duration) error {
	path := cfgPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg, defaultFactoryProvider)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" starting services (%s mode)...", mode)
	s.Start()
	report, err := e.Start(ctx, mode)
	s.Stop()
	if err != nil {
		return err
	}
	if failure := firstEssentialFailure(e, report); failure != nil {
		return &startupFailureError{service: failure.service, cause: failure.err}
	}

	srv := &http.Server{Addr: addr, Handler: statusMux(e)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(startSubsystem, err, "status server stopped unexpectedly")
		}
	}()

	if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); ok {
		logging.Info(startSubsystem, "notified systemd READY=1")
	}
	go runWatchdog(ctx, e)

	logging.Info(startSubsystem, "aegisrt running, serving on %s", addr)
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	results := e.Shutdown(shutdownCtx, shutdownTimeout)
	for name, err := range results {
		if err != nil {
			logging.Warn(startSubsystem, "shutdown of %s: %v", name, err)
			return fmt.Errorf("shutdown of %s: %w", name, err)
		}
	}
	return nil
}

type essentialFailure struct {
	service string
	err     error
}

// firstEssentialFailure returns the first failed ESSENTIAL service from
// the startup report. A failed OPTIONAL or BACKGROUND service is
// logged but does not block startup (spec.md §7).
func firstEssentialFailure(e *engine.Engine, report *lifecycle.StartupReport) *essentialFailure {
	if report == nil {
		return nil
	}
	for name, err := range report.Failures {
		if err == nil {
			continue
		}
		svc, ok := e.Catalog.Get(name)
		if ok && svc.Classification != catalog.Essential {
			continue
		}
		return &essentialFailure{service: name, err: err}
	}
	return nil
}

// runWatchdog pings systemd's watchdog at half the interval systemd
// configured, and returns at once when no watchdog is configured. Its
// ticker is independent of the resource monitor's sampling loop.
func runWatchdog(ctx context.Context, e *engine.Engine) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func statusMux(e *engine.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(e.Snapshot())
	})
	mux.Handle("/metrics", e.Exporter.Handler())
	return mux
}
