package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
	apimw "github.com/hamed0406/sourcewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sourcewatch/internal/repo"
	"github.com/hamed0406/sourcewatch/internal/scheduler"
)

// Scheduler is the part of *scheduler.Scheduler the status API reads.
type Scheduler interface {
	Snapshots() []scheduler.Snapshot
	Snapshot(id string) (scheduler.Snapshot, bool)
	Trigger(id string) error
	StopTask(id string) error
	StartTask(id string) error
}

type Server struct {
	Logger    *zap.Logger
	Sources   []domain.MonitoredSource
	States    repo.StateStore
	Scheduler Scheduler
}

func NewServer(l *zap.Logger, sources []domain.MonitoredSource, states repo.StateStore, sched Scheduler) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Sources: sources, States: states, Scheduler: sched}
}

// Router wires the read-only routes behind RequireAny and the per-IP limiter,
// and the control routes behind RequireAdmin. With no origins CORS allows all.
func (s *Server) Router(keys apimw.Keys, origins []string, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/sources", s.handleListSources)
		r.Get("/sources/{id}/state", s.handleState)
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/sources/{id}/trigger", s.control("triggered", func(id string) error { return s.Scheduler.Trigger(id) }))
			r.Post("/sources/{id}/pause", s.control("paused", func(id string) error { return s.Scheduler.StopTask(id) }))
			r.Post("/sources/{id}/resume", s.control("resumed", func(id string) error { return s.Scheduler.StartTask(id) }))
		})
	})

	return r
}

type sourceView struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Kind     domain.SourceKind   `json:"kind"`
	Channel  string              `json:"channel"`
	Enabled  bool                `json:"enabled"`
	Schedule *scheduler.Snapshot `json:"schedule,omitempty"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	out := make([]sourceView, 0, len(s.Sources))
	for _, src := range s.Sources {
		v := sourceView{ID: src.ID, Name: src.DisplayName(), Kind: src.Kind, Channel: src.Channel, Enabled: src.Enabled}
		if s.Scheduler != nil {
			if snap, ok := s.Scheduler.Snapshot(s.taskID(src)); ok {
				v.Schedule = &snap
			}
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.source(id); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	st, err := s.States.Get(r.Context(), id)
	if err != nil {
		s.Logger.Warn("state_load_error", zap.String("source_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "state unavailable")
		return
	}
	if st == nil {
		st = &domain.SourceState{}
	}
	writeJSON(w, http.StatusOK, st)
}

// control applies op to the source's scheduler task. Pausing a source in
// the shared health monitor pauses every summary-mode target.
func (s *Server) control(status string, op func(taskID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		src, ok := s.source(id)
		if !ok || s.Scheduler == nil {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}
		taskID := s.taskID(src)
		err := op(taskID)
		switch {
		case errors.Is(err, scheduler.ErrUnknownTask):
			writeError(w, http.StatusNotFound, "source is not scheduled")
			return
		case errors.Is(err, scheduler.ErrNotRunning):
			writeError(w, http.StatusConflict, "source is not running")
			return
		case errors.Is(err, scheduler.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, "scheduler is shutting down")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.Logger.Info("task_"+status, zap.String("source_id", id), zap.String("task_id", taskID))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": status, "id": id})
	}
}

func (s *Server) source(id string) (domain.MonitoredSource, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return domain.MonitoredSource{}, false
}

// taskID maps a source to the scheduler task that polls it. In summary mode
// every healthcheck shares one task.
func (s *Server) taskID(src domain.MonitoredSource) string {
	if src.Kind == domain.KindRESTHealthcheck && s.Scheduler != nil {
		if _, own := s.Scheduler.Snapshot(src.ID); !own {
			return scheduler.HealthMonitorID
		}
	}
	return src.ID
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
