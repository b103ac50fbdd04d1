package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/presentation/tui"
	httpAdapter "github.com/aretw0/retrofx/pkg/adapters/http"
	"github.com/aretw0/retrofx/pkg/observability"
	"github.com/aretw0/retrofx/pkg/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP editing server",
	Long:  `Starts the editing API. Each client creates a session, uploads an image and applies effects through the remote processing service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("service-url") {
			cfg.ServiceURL, _ = cmd.Flags().GetString("service-url")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var metrics *observability.Metrics
		if cfg.MetricsEnabled {
			metrics = observability.NewMetrics()
		}

		client, err := newGateway(cfg, logger, metrics)
		if err != nil {
			return err
		}
		store, locker, closeStore, err := newStore(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Warn("Failed to close session store", "err", err)
			}
		}()

		mgrOpts := []session.Option{session.WithLogger(logger)}
		if locker != nil {
			mgrOpts = append(mgrOpts, session.WithLocker(locker))
		}
		mgr := session.NewManager(newEditorFactory(cfg, client, logger, metrics), store, mgrOpts...)

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithApplyTimeout(cfg.RequestTimeout),
		}
		if metrics != nil {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(metrics))
		}

		servers := []*http.Server{{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           httpAdapter.NewHandler(mgr, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}}
		if metrics != nil && cfg.MetricsPort != cfg.Port {
			servers = append(servers, &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
				Handler:           metrics.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			})
		}

		tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(retrofx.Version))
		logger.Info("Starting retrofx server", "addr", servers[0].Addr, "service_url", cfg.ServiceURL)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServers(ctx, servers)
	},
}

// runServers serves until ctx is done or one server fails, then shuts all of them down.
func runServers(ctx context.Context, servers []*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("graceful shutdown of %s did not complete: %w", srv.Addr, err))
				_ = srv.Close()
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("service-url", "", "Base URL of the image processing service")
}
