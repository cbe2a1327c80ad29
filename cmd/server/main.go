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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/staylens/internal/config"
	"github.com/stwalsh4118/staylens/internal/dataset"
	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/handlers"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"github.com/stwalsh4118/staylens/internal/services"
	"github.com/stwalsh4118/staylens/internal/source"
	"github.com/stwalsh4118/staylens/internal/views"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:           "staylens",
		Short:         "Serve the rental listings dashboard API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HOST)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting StayLens API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"addr":        cfg.Server.Addr(),
	})

	policy, err := filter.ParsePolicy(cfg.Dashboard.EmptySelection)
	if err != nil {
		log.Fatal("Invalid empty selection policy", err, nil)
	}

	reader, err := source.Open(source.Options{
		Location:     cfg.Data.Source,
		Table:        cfg.Data.Table,
		Sheet:        cfg.Data.Sheet,
		Columns:      dataset.SourceColumns,
		FetchTimeout: cfg.Data.FetchTimeout,
		Database:     cfg.Database,
	})
	if err != nil {
		log.Fatal("Failed to open data source", err, map[string]interface{}{
			"source": cfg.Data.Source,
		})
	}

	ds, err := dataset.Load(ctx, reader, log.WithComponent("dataset"))
	if err != nil {
		log.Fatal("Failed to load dataset", err, map[string]interface{}{
			"source": reader.Describe(),
		})
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		stats := ds.Stats()
		m.SetDataset(ds.Len(), stats.DroppedMissingNeighbourhood, stats.DroppedInvalidPrice)
	}

	registry := views.NewRegistry(views.Options{
		HistogramBuckets: cfg.Dashboard.HistogramBuckets,
		Policy:           policy,
	})
	dashboardService := services.NewDashboardService(ds, registry, m, log, services.DashboardOptions{
		DefaultNeighbourhoods: cfg.Dashboard.DefaultNeighbourhoods,
		PropertyTypeOptions:   cfg.Dashboard.PropertyTypeOptions,
	})

	router := newRouter(routerDeps{
		cfg:     cfg,
		log:     log,
		ds:      ds,
		service: dashboardService,
		metrics: m,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", map[string]interface{}{
			"addr": srv.Addr,
			"rows": ds.Len(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", err, map[string]interface{}{
				"timeout": shutdownTimeout.String(),
			})
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", err, nil)
		return err
	}

	log.Info("Server exited", nil)
	return nil
}
