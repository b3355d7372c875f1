package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stopfill/pkg/metrics"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int
	MaxWaypoints   int
	Profile        string
	CORSOrigin     string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:           addr,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   15 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxConcurrent:  runtime.NumCPU() * 2,
		MaxWaypoints:   100,
		Profile:        "driving",
	}
}

// NewServer creates an HTTP server with all routes and middleware. m may be
// nil, in which case /metrics is not served.
func NewServer(cfg ServerConfig, handlers *Handlers, logger *zap.Logger, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	sem := make(chan struct{}, cfg.MaxConcurrent)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return withMiddleware(h, sem, cfg, logger, m)
	}

	mux.HandleFunc("GET /route/v1/{profile}/{coordinates}", wrap(handlers.HandleRoute))
	mux.HandleFunc("GET /health", wrap(handlers.HandleHealth))
	mux.HandleFunc("GET /stats", wrap(handlers.HandleStats))
	if m != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts the server and blocks until it fails or a shutdown
// signal arrives.
func ListenAndServe(srv *http.Server, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.Stringer("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware wraps a handler with logging, recovery, security headers,
// metrics and concurrency limiting.
func withMiddleware(handler http.HandlerFunc, sem chan struct{}, cfg ServerConfig, logger *zap.Logger, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() { m.Request(r.Pattern, rec.status) }()

		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			rec.Header().Set("Retry-After", "1")
			writeError(rec, http.StatusServiceUnavailable, CodeUnavailable, "too many concurrent requests")
			return
		}

		defer func() {
			if p := recover(); p != nil {
				logger.Error("handler panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeError(rec, http.StatusInternalServerError, CodeInternal, "")
			}
		}()

		ctx := r.Context()
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}

		start := time.Now()
		handler(rec, r.WithContext(ctx))
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	}
}
