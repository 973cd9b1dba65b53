package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	apimw "github.com/hamed0406/uptimeguard/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeguard/internal/repo"
	"github.com/hamed0406/uptimeguard/internal/scheduler"
)

// Runner is the engine behind the trigger endpoints.
type Runner interface {
	RunPass(ctx context.Context) (scheduler.Summary, error)
	RunSingle(ctx context.Context, id domain.TargetID) (scheduler.SingleResult, error)
}

type Server struct {
	Logger         *zap.Logger
	Runner         Runner
	Gatherer       prometheus.Gatherer // nil hides /metrics
	AllowedOrigins []string            // defaults to any origin
}

func NewServer(l *zap.Logger, r Runner, g prometheus.Gatherer) *Server {
	return &Server{Logger: l, Runner: r, Gatherer: g, AllowedOrigins: []string{"*"}}
}

// Router wires the routes. The pass trigger needs an admin key; the manual
// trigger takes any key and is rate limited.
func (s *Server) Router(keys apimw.Keys, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/check-servers", func(r chi.Router) {
		r.With(apimw.RequireAdmin(keys)).Get("/", s.handlePass)
		r.With(apimw.RequireAny(keys), apimw.RateLimit(publicRPM, publicBurst)).Post("/", s.handleSingle)
	})
	return r
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Runner.RunPass(r.Context())
	if err != nil {
		s.Logger.Error("pass_failed", zap.String("request_id", chimw.GetReqID(r.Context())), zap.Error(err))
		apimw.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type singlePayload struct {
	TargetID string `json:"target_id"`
}

func (s *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	var p singlePayload
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.TargetID) == "" {
		apimw.Error(w, http.StatusBadRequest, "bad payload: target_id required")
		return
	}

	out, err := s.Runner.RunSingle(r.Context(), domain.TargetID(strings.TrimSpace(p.TargetID)))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		apimw.Error(w, http.StatusNotFound, "target not found")
		return
	case err != nil:
		s.Logger.Error("manual_check_failed", zap.String("target_id", p.TargetID), zap.Error(err))
		apimw.Error(w, http.StatusInternalServerError, "check failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
