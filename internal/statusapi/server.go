package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/metrics"
	"github.com/danielbelay23/data-pipelines/pkg/schedule"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// SessionReader reads the session log
type SessionReader interface {
	Recent(n int) ([]session.Entry, error)
	BySession(id string) ([]session.Entry, error)
}

// GateEvaluator reports the deterministic part of the schedule gate
type GateEvaluator interface {
	Evaluate(now time.Time) (schedule.Evaluation, error)
}

// Counter reports how many items a persisted document holds
type Counter interface {
	Count() (int, error)
}

// Deps are the read-only sources behind the API
type Deps struct {
	Sessions  SessionReader
	Gate      GateEvaluator
	Documents map[string]Counter
	Gatherer  prometheus.Gatherer
	Logger    logger.Logger
	Clock     func() time.Time
}

type handler struct {
	deps Deps
	log  logger.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the status API:
//
//	GET /healthz
//	GET /sessions?limit=N
//	GET /sessions/{id}
//	GET /gate
//	GET /documents
//	GET /metrics
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{deps: deps, log: deps.Logger.WithField("component", "statusapi")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.health)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.listSessions)
		r.Get("/{id}", h.getSession)
	})
	r.Get("/gate", h.gate)
	r.Get("/documents", h.documents)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	return r
}

// Serve runs the router on addr until ctx is done
func Serve(ctx context.Context, addr string, router http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(log, "statusapi", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.LogRequest(h.log, r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	entries, err := h.deps.Sessions.Recent(limit)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if entries == nil {
		entries = []session.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := h.deps.Sessions.BySession(id)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) gate(w http.ResponseWriter, r *http.Request) {
	eval, err := h.deps.Gate.Evaluate(h.deps.Clock())
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (h *handler) documents(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.deps.Documents))
	for name := range h.deps.Documents {
		names = append(names, name)
	}
	sort.Strings(names)

	counts := make(map[string]int, len(names))
	for _, name := range names {
		n, err := h.deps.Documents[name].Count()
		if err != nil {
			h.internalError(w, err)
			return
		}
		counts[name] = n
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *handler) internalError(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("Status request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
