// Package admin implements the read-only operational HTTP surface:
// GET /healthz, /models, /usage/summary, /privacy/summary. It is not the
// tool-invocation transport, just a loopback-convention window for a human
// operator or sidecar monitor. No auth, rate-limit, or CORS middleware:
// there is no untrusted client here.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/auracore/aurarouter/fabric"
	"github.com/auracore/aurarouter/logger"
	"github.com/auracore/aurarouter/tools"
)

var log = logger.New("admin")

// NewRouter returns a chi.Router exposing the admin surface over f.
func NewRouter(f *fabric.Fabric) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", healthzHandler)
	r.Get("/models", modelsHandler(f))
	r.Get("/usage/summary", usageSummaryHandler(f))
	r.Get("/privacy/summary", privacySummaryHandler(f))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "aurarouter"})
}

func modelsHandler(f *fabric.Fabric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tools.ListModels(f))
	}
}

func usageSummaryHandler(f *fabric.Fabric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		projection, err := f.CostEngine().MonthlyProjection(now)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		byProvider, err := f.CostEngine().SpendByProvider(&monthStart, nil)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"monthly_projection": projection,
			"spend_by_provider":  byProvider,
		})
	}
}

func privacySummaryHandler(f *fabric.Fabric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := f.PrivacyStore().Summary()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", chimw.GetReqID(r.Context())).
			Int("status", rw.Status()).
			Dur("duration", time.Since(start)).
			Msg("admin request completed")
	})
}
