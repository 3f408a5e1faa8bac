package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gpucoordd/pkg/types"
)

// StatusReporter is the view of the coordinator exposed over HTTP.
type StatusReporter interface {
	Status() types.StatusResponse
}

// NewMux builds the ops router: /healthz, /status, /metrics. Read-only; the
// coordinator is never driven through HTTP.
func NewMux(rep StatusReporter, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"}, log)
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, rep.Status(), log)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
