package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/countrylayer"
	"github.com/tjfontaine/polyglot-dashboard/internal/api/exchangerate"
	"github.com/tjfontaine/polyglot-dashboard/internal/api/newsapi"
	"github.com/tjfontaine/polyglot-dashboard/internal/api/randomuser"
	"github.com/tjfontaine/polyglot-dashboard/internal/api/restcountries"
	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
	"github.com/tjfontaine/polyglot-dashboard/internal/pipeline"
	"github.com/tjfontaine/polyglot-dashboard/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dashboard/internal/runstore"
	"github.com/tjfontaine/polyglot-dashboard/internal/server"
	"github.com/tjfontaine/polyglot-dashboard/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(telemetry.TracerOptions{
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRatio: cfg.Telemetry.SampleRatio,
			Writer:      os.Stderr,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	store, err := runstore.New(cfg.RunStore)
	if err != nil {
		log.Fatalf("Failed to create run store: %v", err)
	}
	defer store.Close()

	hc := upstream.NewHTTPClient(upstream.ClientOptions{
		Timeout:     cfg.Upstream.Timeout,
		DenyPrivate: cfg.Upstream.DenyPrivate,
	})
	up := cfg.Upstream

	stages, err := pipeline.NewStages(pipeline.Sources{
		People: randomuser.NewClient(
			randomuser.WithBaseURL(up.RandomUser.BaseURL), randomuser.WithHTTPClient(hc)),
		Countries: restcountries.NewClient(
			restcountries.WithBaseURL(up.RestCountries.BaseURL), restcountries.WithHTTPClient(hc)),
		Rates: exchangerate.NewClient(up.ExchangeRate.APIKey,
			exchangerate.WithBaseURL(up.ExchangeRate.BaseURL), exchangerate.WithHTTPClient(hc)),
		Headlines: newsapi.NewClient(up.NewsAPI.APIKey,
			newsapi.WithBaseURL(up.NewsAPI.BaseURL), newsapi.WithHTTPClient(hc)),
		Briefs: countrylayer.NewClient(up.CountryLayer.APIKey,
			countrylayer.WithBaseURL(up.CountryLayer.BaseURL), countrylayer.WithHTTPClient(hc)),
	})
	if err != nil {
		log.Fatalf("Failed to build stages: %v", err)
	}

	for name, key := range map[string]string{
		"exchangerate": up.ExchangeRate.APIKey,
		"newsapi":      up.NewsAPI.APIKey,
		"countrylayer": up.CountryLayer.APIKey,
	} {
		if key == "" {
			logger.Warn("no API key configured; its stage will be rejected upstream", slog.String("service", name))
		}
	}

	metrics := telemetry.NewMetrics()
	exec, err := pipeline.NewExecutor(store, stages,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(metrics),
	)
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
		Metrics:        metrics.Handler(),
	}, exec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.ShutdownTimeout)
	})
	if sweeper, ok := store.(ports.Sweeper); ok {
		g.Go(func() error {
			sweep(gctx, sweeper, cfg.RunStore.TTL, logger)
			return nil
		})
	}

	logger.Info("dashboard started",
		slog.Int("port", cfg.Server.Port),
		slog.String("runstore", cfg.RunStore.Type),
		slog.Bool("tracing", cfg.Telemetry.Tracing),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("dashboard shutdown complete")
}

// sweep reclaims abandoned runs until ctx is done.
func sweep(ctx context.Context, s ports.Sweeper, ttl time.Duration, logger *slog.Logger) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logger.Error("run sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Info("swept abandoned runs", slog.Int("count", n))
			}
		}
	}
}
