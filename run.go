package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sadopc/stride/internal/api"
	"github.com/sadopc/stride/internal/config"
	"github.com/sadopc/stride/internal/lifecycle"
	"github.com/sadopc/stride/internal/notify"
	"github.com/sadopc/stride/internal/source"
	"github.com/sadopc/stride/internal/steps"
	httptransport "github.com/sadopc/stride/internal/transport/http"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking daemon",
	Long: `Runs the step tracking daemon in the foreground.

The daemon reads the configured step source, keeps today's count in the
shared store, resets it at local midnight and prints a notification as the
count grows. It serves a small control API on the control address, with
Prometheus metrics under /metrics.

Tracking resumes automatically if it was on when the daemon last stopped.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var (
	runStart bool
	runQuiet bool
	runDrain time.Duration
)

func init() {
	runCmd.Flags().BoolVar(&runStart, "start", false, "Start tracking even if it was off")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print step notifications")
	runCmd.Flags().DurationVar(&runDrain, "shutdown-timeout", 15*time.Second, "Graceful shutdown timeout")
}

func driverConfig(cfg *config.Config) lifecycle.Config {
	return lifecycle.Config{
		SampleInterval:   cfg.SampleInterval,
		DayCheckDelay:    cfg.DayCheckDelay,
		DayCheckInterval: cfg.DayCheckInterval,
		NotifyEverySteps: cfg.NotifyEverySteps,
		NotifyInterval:   cfg.NotifyInterval,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logger := cfg.NewLogger()
	log := logger.WithField("run_id", uuid.NewString())

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	rec := steps.New(s,
		steps.WithHistory(s),
		steps.WithLogger(log),
		steps.WithPersistThreshold(cfg.PersistThreshold),
	)
	if err := rec.Load(time.Now()); err != nil {
		return fmt.Errorf("load step state: %w", err)
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}

	var presenter notify.Presenter = notify.NewTermPresenter(os.Stdout)
	if runQuiet {
		presenter = notify.Nop{}
	}
	driver := lifecycle.New(rec, src, s, driverConfig(cfg),
		lifecycle.WithLogger(log),
		lifecycle.WithPresenter(presenter),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if runStart {
		err = driver.StartTracking(ctx)
	} else {
		err = driver.Restore(ctx)
	}
	if err != nil {
		// The control API stays up so tracking can be retried.
		log.WithError(err).Warn("tracking not started")
	}

	handler := api.NewHandler(driver, log)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.ControlAddress), handler.Logging(mux))

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"address": cfg.ControlAddress,
			"source":  cfg.Source.Kind,
		}).Info("stride daemon listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return serveFailed(driver, log, err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), runDrain)
	defer shutdownCancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("graceful shutdown: %w", err))
	}
	if driver.Tracking() {
		// Leave the flag on so the next run resumes.
		if err := driver.Suspend(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serveFailed suspends tracking after the control server dies. The server
// error is returned; a suspend failure is only logged.
func serveFailed(driver interface{ Suspend() error }, log logrus.FieldLogger, err error) error {
	if serr := driver.Suspend(); serr != nil {
		log.WithError(serr).Warn("failed to suspend tracking")
	}
	return fmt.Errorf("control server: %w", err)
}
