package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/entity-dynamics/internal/httpapi"
	"github.com/danielpatrickdp/entity-dynamics/internal/journal"
	"github.com/danielpatrickdp/entity-dynamics/internal/metrics"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/rpc"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over gRPC with periodic loop sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

// #region serve
func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	rec := metrics.New(true)
	opts := []registry.Option{registry.WithLogger(logger), registry.WithRecorder(rec)}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		opts = append(opts, registry.WithSink(j))
		logger.Info("journal enabled", "path", cfg.Journal.Path)
	}
	reg := registry.New(cfg.Engine.Registry(), opts...)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.LoggingInterceptor(logger)))
	rpc.NewServer(reg, rpc.WithServerLogger(logger)).Register(gs)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("dynamics.v1.Dynamics", healthpb.HealthCheckResponse_SERVING)

	var httpSrv *http.Server
	if cfg.Server.HTTPAddr != "" {
		api := httpapi.New(reg, httpapi.WithMetrics(rec.Handler()))
		httpSrv = &http.Server{Addr: cfg.Server.HTTPAddr, Handler: api, ReadHeaderTimeout: 5 * time.Second}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc serving", "addr", lis.Addr().String())
		return gs.Serve(lis)
	})
	if httpSrv != nil {
		g.Go(func() error {
			logger.Info("http serving", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		sweepLoop(ctx, reg, rec, cfg.Server.SweepInterval, logger)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hs.Shutdown()
		gs.GracefulStop()
		if httpSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		}
		return nil
	})
	return g.Wait()
}

// sweepLoop runs every due review loop on each tick until ctx is done. A
// non-positive interval disables periodic sweeps.
func sweepLoop(ctx context.Context, reg *registry.Registry, rec *metrics.Recorder, every time.Duration, logger *slog.Logger) {
	rec.ObserveSummary(reg.GlobalState())
	if every <= 0 {
		logger.Info("periodic sweeps disabled")
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := reg.RunAllLoops()
			sum := reg.GlobalState()
			rec.ObserveSummary(sum)
			logger.Debug("sweep tick", "sweep", res.Sweep, "entities", sum.Entities, "critical", sum.Critical)
		}
	}
}

// #endregion serve
