// Package api exposes the read-only HTTP interface for the harvester:
// health, Prometheus metrics, and browse endpoints over the discovered
// hierarchy and the harvested notices.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/harvest"
	"github.com/campushub/notice-harvester/internal/metrics"
)

// InstitutionReader lists institutions for the browse endpoints.
type InstitutionReader interface {
	List(ctx context.Context) ([]harvest.Institution, error)
	GetByCode(ctx context.Context, code string) (harvest.Institution, bool, error)
}

// SubUnitReader lists sub-units for the browse endpoints.
type SubUnitReader interface {
	ListByInstitution(ctx context.Context, institutionID int64) ([]harvest.SubUnit, error)
}

// NoticeReader lists harvested notices for the browse endpoints.
type NoticeReader interface {
	List(ctx context.Context, subUnitID int64, board harvest.BoardType, limit int) ([]harvest.NoticeRecord, error)
}

const (
	defaultNoticeLimit = 50
	maxNoticeLimit     = 500
	requestTimeout     = 10 * time.Second
)

// Server wires HTTP handlers to the stores.
type Server struct {
	router  chi.Router
	insts   InstitutionReader
	subs    SubUnitReader
	notices NoticeReader
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(insts InstitutionReader, subs SubUnitReader, notices NoticeReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		insts:   insts,
		subs:    subs,
		notices: notices,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/institutions", s.listInstitutions)
		r.Get("/institutions/{code}/sub-units", s.listSubUnits)
		r.Get("/sub-units/{id}/notices", s.listNotices)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
