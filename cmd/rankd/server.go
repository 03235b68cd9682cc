package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/searchrank/internal/api"
	"github.com/onnwee/searchrank/internal/classify"
	"github.com/onnwee/searchrank/internal/config"
	"github.com/onnwee/searchrank/internal/health"
	"github.com/onnwee/searchrank/internal/jobs"
	"github.com/onnwee/searchrank/internal/middleware"
	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/store"
	"github.com/onnwee/searchrank/internal/tracing"
)

const (
	serviceName     = "searchrank"
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 5 * time.Minute
)

// app holds everything the HTTP handler needs. It is built once in main.
type app struct {
	logger     *slog.Logger
	scorer     *ranking.Scorer
	classifier ranking.Classifier
	store      store.Store
	rateStore  middleware.RateLimitStore
	rankLimit  middleware.RateLimitConfig
	lookLimit  middleware.RateLimitConfig
	trusted    []string

	registry    *prometheus.Registry
	rankMetrics *ranking.Metrics
	httpMetrics *middleware.Metrics
	jobMetrics  *jobs.Metrics

	storeCheck       health.Checker
	calibrationCheck health.Checker

	// closers run on shutdown in reverse order.
	closers []func(context.Context) error
}

// newApp wires the model, storage and metrics from cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		logger:      logger,
		registry:    prometheus.NewRegistry(),
		rankMetrics: ranking.NewMetrics(),
		httpMetrics: middleware.NewMetrics(),
		jobMetrics:  jobs.NewMetrics(),
		rankLimit:   middleware.DefaultRankLimit(),
		lookLimit:   middleware.DefaultLookupLimit(),
		trusted:     cfg.TrustedClientIDs,
	}
	if err := a.rankMetrics.Register(a.registry); err != nil {
		return nil, fmt.Errorf("register ranking metrics: %w", err)
	}
	if err := a.httpMetrics.Register(a.registry); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	if err := a.jobMetrics.Register(a.registry); err != nil {
		return nil, fmt.Errorf("register job metrics: %w", err)
	}

	if cfg.RateLimitPerMinute > 0 {
		a.rankLimit.RequestsPerWindow = cfg.RateLimitPerMinute
		a.lookLimit.RequestsPerWindow = 2 * cfg.RateLimitPerMinute
	}

	cls, err := classify.Load(cfg.TaxonomyPath, cfg.CategoriesPath)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	a.classifier = cls

	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		if cfg.Env == "production" {
			return nil, err
		}
		logger.Warn("serving with default weights", "error", err)
		a.calibrationCheck = health.Static(err)
	}
	if a.scorer, err = ranking.NewScorer(weights); err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}
	a.rankMetrics.SetCalibrationLoaded(cfg.CalibrationPath != "" && a.calibrationCheck == nil)

	ttl := time.Duration(cfg.StoreTTLSeconds) * time.Second
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.store = store.NewRedisStore(client, "", ttl)
		a.rateStore = middleware.NewRedisRateLimitStore(client).WithMetrics(a.httpMetrics)
		a.storeCheck = health.NewRedisChecker(client)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		logger.Info("using redis store")
	} else {
		mem := store.NewMemoryStore(ttl)
		limits := middleware.NewInMemoryRateLimitStore()
		a.store = mem
		a.rateStore = limits

		ctx, cancel := context.WithCancel(context.Background())
		go jobs.Every(ctx, cleanupInterval, a.jobMetrics, jobs.JobTypeStoreCleanup, func(context.Context) error {
			mem.Cleanup()
			return nil
		})
		go jobs.Every(ctx, cleanupInterval, a.jobMetrics, jobs.JobTypeRateLimitCleanup, func(context.Context) error {
			limits.Cleanup()
			return nil
		})
		a.closers = append(a.closers, func(context.Context) error { cancel(); return nil })
		logger.Info("using in-memory store")
	}

	return a, nil
}

// handler builds the routed and instrumented HTTP handler.
func (a *app) handler() http.Handler {
	rank := api.NewRankHandlers(api.RankHandlersConfig{
		Scorer:     a.scorer,
		Classifier: a.classifier,
		Store:      a.store,
		Metrics:    a.rankMetrics,
	})
	probes := api.NewHealthHandlers(api.HealthHandlersConfig{
		Store:       a.storeCheck,
		Calibration: a.calibrationCheck,
	})

	keyFunc := middleware.ClientKeyFunc(a.trusted)
	rankLimiter := middleware.RateLimiter(a.rateStore, a.rankLimit, keyFunc, a.httpMetrics)
	lookupLimiter := middleware.RateLimiter(a.rateStore, a.lookLimit, keyFunc, a.httpMetrics)

	// Handlers check the method themselves so a wrong method gets a JSON 405.
	mux := http.NewServeMux()
	mux.Handle("/v1/rank", rankLimiter(http.HandlerFunc(rank.Rank)))
	mux.Handle("/v1/stored/{id}", lookupLimiter(http.HandlerFunc(rank.GetStored)))
	mux.HandleFunc("/health", probes.Health)
	mux.HandleFunc("/ready", probes.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"service":%q,"version":%q}`, serviceName, tracing.ServiceVersion); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// RequestID -> Tracing -> ClientID -> Logging -> HTTPMetrics -> routes
	var h http.Handler = mux
	h = middleware.HTTPMetrics(a.httpMetrics)(h)
	h = middleware.Logging(a.logger)(h)
	h = middleware.ClientID(h)
	h = middleware.Tracing(serviceName)(h)
	return middleware.RequestID(h)
}

// close releases resources in reverse acquisition order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serve runs server on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}
