package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// RunHeader carries the server-side run id between stage requests.
const RunHeader = "X-Run-ID"

// RunExecutor runs the stages of one run. pipeline.Executor implements it.
type RunExecutor interface {
	Begin(ctx context.Context) (string, error)
	Step(ctx context.Context, runID string, stage domain.StageName) (any, error)
	Release(ctx context.Context, runID string) error
}

// Options configures the HTTP server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	exec   RunExecutor
}

func New(opts Options, exec RunExecutor) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "dashboard")
	})

	s := &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
		exec:   exec,
	}

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/random-user", s.handleRandomUser)
		r.Get("/country-full-info", s.handleStage(domain.StageCountry))
		r.Get("/exchange-rate", s.handleStage(domain.StageExchange))
		r.Get("/news", s.handleStage(domain.StageNews))
		r.Get("/country-info", s.handleStage(domain.StageCountryBrief))
		r.Delete("/runs/{runID}", s.handleRelease)
	})

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
