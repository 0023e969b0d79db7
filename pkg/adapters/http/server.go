// Package http exposes the sorter control surface over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Controller is the sorter as seen by the control surface.
type Controller interface {
	Start() bool
	Stop(ctx context.Context) error
	Status() domain.Status
	Criteria() domain.CriteriaTable
	SubmitCriteria(ctx context.Context, table domain.CriteriaTable) error
	ResetMonthly(ctx context.Context) error
	ClearFailed(ctx context.Context) error
	FailedArtifacts(ctx context.Context) ([]string, error)
	Sensors() ([]domain.SensorReading, error)
	SetArchiveEnabled(enabled bool)
	RecentCards(ctx context.Context, limit int) ([]ports.ArchivedCard, error)
}

// ReloadFunc re-reads configuration. It must return domain.ErrRunning while sorting.
type ReloadFunc func(ctx context.Context) error

// DefaultCardsLimit is used by GET /cards without a limit.
const DefaultCardsLimit = 50

// Server handles the control surface requests.
type Server struct {
	ctrl    Controller
	streams *StreamManager
	reload  ReloadFunc
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithReload enables POST /config/reload.
func WithReload(fn ReloadFunc) Option {
	return func(s *Server) {
		s.reload = fn
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams enables GET /events, fed by the stream manager's hooks.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the router for ctrl.
func NewHandler(ctrl Controller, opts ...Option) http.Handler {
	s := &Server{ctrl: ctrl, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/status", s.GetStatus)
	r.Post("/sorting/start", s.StartSorting)
	r.Post("/sorting/stop", s.StopSorting)
	r.Get("/criteria", s.GetCriteria)
	r.Put("/criteria", s.PutCriteria)
	r.Post("/counters/monthly/reset", s.ResetMonthly)
	r.Get("/failed", s.ListFailed)
	r.Post("/failed/clear", s.ClearFailed)
	r.Get("/sensors", s.GetSensors)
	r.Put("/archive", s.PutArchive)
	r.Get("/cards", s.GetCards)
	if s.reload != nil {
		r.Post("/config/reload", s.ReloadConfig)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus handles GET /status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// StartSorting handles POST /sorting/start. Starting twice is not an error.
func (s *Server) StartSorting(w http.ResponseWriter, r *http.Request) {
	started := s.ctrl.Start()
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"started": started,
		"status":  s.ctrl.Status(),
	})
}

// StopSorting handles POST /sorting/stop.
func (s *Server) StopSorting(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		if errors.Is(err, domain.ErrStopTimeout) {
			s.writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// GetCriteria handles GET /criteria.
func (s *Server) GetCriteria(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Criteria())
}

// CriteriaUpdate is the PUT /criteria response. PersistError is set when the table was
// applied but could not be saved; it stays in use until the next restart.
type CriteriaUpdate struct {
	Criteria     domain.CriteriaTable `json:"criteria"`
	PersistError string               `json:"persist_error,omitempty"`
}

// PutCriteria handles PUT /criteria with an object keyed by bin number.
func (s *Server) PutCriteria(w http.ResponseWriter, r *http.Request) {
	var table domain.CriteriaTable
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&table); err != nil {
		s.logger.Warn("PutCriteria: invalid request body", "err", err)
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var resp CriteriaUpdate
	if err := s.ctrl.SubmitCriteria(r.Context(), table); err != nil {
		if !errors.Is(err, domain.ErrConfigPersist) {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.PersistError = err.Error()
	}
	resp.Criteria = s.ctrl.Criteria()
	s.writeJSON(w, http.StatusOK, resp)
}

// ResetMonthly handles POST /counters/monthly/reset.
func (s *Server) ResetMonthly(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ResetMonthly(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status().Counters)
}

// ListFailed handles GET /failed.
func (s *Server) ListFailed(w http.ResponseWriter, r *http.Request) {
	stamps, err := s.ctrl.FailedArtifacts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if stamps == nil {
		stamps = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"failed": stamps})
}

// ClearFailed handles POST /failed/clear.
func (s *Server) ClearFailed(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ClearFailed(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status().Counters)
}

// GetSensors handles GET /sensors.
func (s *Server) GetSensors(w http.ResponseWriter, r *http.Request) {
	readings, err := s.ctrl.Sensors()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sensors": readings})
}

type archiveRequest struct {
	Enabled *bool `json:"enabled"`
}

// PutArchive handles PUT /archive.
func (s *Server) PutArchive(w http.ResponseWriter, r *http.Request) {
	var body archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		s.writeError(w, http.StatusBadRequest, errors.New(`expected {"enabled": true|false}`))
		return
	}
	s.ctrl.SetArchiveEnabled(*body.Enabled)
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
}

// GetCards handles GET /cards?limit=N.
func (s *Server) GetCards(w http.ResponseWriter, r *http.Request) {
	limit := DefaultCardsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	cards, err := s.ctrl.RecentCards(r.Context(), limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

// ReloadConfig handles POST /config/reload. It is refused while sorting.
func (s *Server) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.reload(ctx); err != nil {
		if errors.Is(err, domain.ErrRunning) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", code, "err", err)
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
