package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxConcurrent int
	CORSOrigin    string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:          addr,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		MaxConcurrent: runtime.NumCPU() * 2,
		CORSOrigin:    "",
	}
}

// NewServer creates an HTTP server with the routes below wired to handlers,
// under the teacher's concurrency-limited, security-header,
// panic-recovering middleware stack. No route serves auto-boundary
// detection (neighbourhood.AutoBoundary) or a rendering of the whole road
// network.
func NewServer(cfg ServerConfig, handlers *Handlers, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	mw := func(h http.HandlerFunc) http.HandlerFunc { return withMiddleware(h, sem, cfg, log) }

	mux.HandleFunc("POST /api/v1/route", mw(handlers.HandleRoute))
	mux.HandleFunc("POST /api/v1/roads-along-line", mw(handlers.HandleRoadsAlongLine))
	mux.HandleFunc("GET /api/v1/health", mw(handlers.HandleHealth))
	mux.HandleFunc("GET /api/v1/stats", mw(handlers.HandleStats))

	mux.HandleFunc("POST /api/v1/edit/modal-filter", mw(handlers.HandleAddModalFilter))
	mux.HandleFunc("DELETE /api/v1/edit/modal-filter", mw(handlers.HandleRemoveModalFilter))
	mux.HandleFunc("POST /api/v1/edit/modal-filter-kind", mw(handlers.HandleSetModalFilterKind))
	mux.HandleFunc("POST /api/v1/edit/diagonal-filter", mw(handlers.HandleAddDiagonalFilter))
	mux.HandleFunc("DELETE /api/v1/edit/diagonal-filter", mw(handlers.HandleRemoveDiagonalFilter))
	mux.HandleFunc("POST /api/v1/edit/turn-restriction", mw(handlers.HandleAddTurnRestriction))
	mux.HandleFunc("DELETE /api/v1/edit/turn-restriction", mw(handlers.HandleRemoveTurnRestriction))
	mux.HandleFunc("POST /api/v1/edit/travel-flow", mw(handlers.HandleSetTravelFlow))
	mux.HandleFunc("POST /api/v1/edit/main-road-penalty", mw(handlers.HandleSetMainRoadPenalty))
	mux.HandleFunc("POST /api/v1/edit/reclassify", mw(handlers.HandleReclassify))
	mux.HandleFunc("POST /api/v1/edit/undo", mw(handlers.HandleUndo))
	mux.HandleFunc("POST /api/v1/edit/redo", mw(handlers.HandleRedo))
	mux.HandleFunc("POST /api/v1/router/rebuild", mw(handlers.HandleRebuildRouter))
	mux.HandleFunc("POST /api/v1/movements", mw(handlers.HandleListMovements))

	mux.HandleFunc("POST /api/v1/neighbourhood", mw(handlers.HandleSetNeighbourhood))
	mux.HandleFunc("GET /api/v1/neighbourhood/stats", mw(handlers.HandleBoundaryStats))
	mux.HandleFunc("GET /api/v1/cells", mw(handlers.HandleCells))
	mux.HandleFunc("GET /api/v1/shortcuts", mw(handlers.HandleShortcuts))
	mux.HandleFunc("GET /api/v1/render-cells", mw(handlers.HandleRenderCells))
	mux.HandleFunc("GET /api/v1/demand", mw(handlers.HandleDemandGeoJSON))

	mux.HandleFunc("POST /api/v1/impact/recalculate", mw(handlers.HandleImpactRecalculate))
	mux.HandleFunc("POST /api/v1/impact/on-road", mw(handlers.HandleImpactOnRoad))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts the server and blocks until shutdown signal.
func ListenAndServe(srv *http.Server, log *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// withMiddleware wraps a handler with security headers, CORS, a concurrency
// limiter, panic recovery, and a per-request timeout. Ported near-verbatim
// from the teacher's pkg/api/server.go, swapping log.Printf for zap.
func withMiddleware(handler http.HandlerFunc, sem chan struct{}, cfg ServerConfig, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"service_unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", zap.Any("panic", rec))
				http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
			}
		}()

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		handler(w, r.WithContext(ctx))
		log.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
