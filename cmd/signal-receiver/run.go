package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/signal-receiver/internal/config"
	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/httpapi"
	"github.com/Enriquefft/signal-receiver/internal/logging"
	"github.com/Enriquefft/signal-receiver/internal/metrics"
	"github.com/Enriquefft/signal-receiver/internal/notify"
	"github.com/Enriquefft/signal-receiver/internal/receiver"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the receiver and serve its state until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, path)
		},
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format)
	logger := logging.NewLogger("main")

	m := metrics.New()

	notifiers := notify.Multi{notify.NewLog()}
	if cfg.NATS.URL != "" {
		conn, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		// Close flushes buffered publishes before returning.
		defer conn.Close()
		notifiers = append(notifiers, notify.NewNATS(conn, cfg.NATS.Subject))
		logger.Infof("publishing events to %s", cfg.NATS.URL)
	}

	inst, err := receiver.Setup(ctx, cfg, receiver.Deps{
		Notifier: notifiers,
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer inst.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	if cfg.HTTP.Addr != "" {
		srv := &httpapi.Server{
			Addr:     cfg.HTTP.Addr,
			View:     inst.State(),
			Registry: m.Registry(),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(runCtx); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	if path == "" {
		path = config.Path()
	}
	if _, err := os.Stat(path); err == nil {
		w, err := config.NewWatcher(path, cfg, 0, func(opts config.Options) {
			if err := inst.UpdateOptions(opts); err != nil {
				logger.WithError(err).Error("options change rejected")
			}
		})
		if err != nil {
			logger.WithError(err).Warn("config watcher disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Start(runCtx)
			}()
			if inst.Mode() == delivery.ModePoll {
				logger.Infof("watching %s for scan_interval changes", path)
			}
		}
	}

	<-runCtx.Done()
	logger.Info("shutting down")
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
