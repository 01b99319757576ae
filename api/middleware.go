package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"scoreline/admission"
	"scoreline/metrics"

	"github.com/gorilla/mux"
)

// metricsMiddleware records request counts and latency per route template.
// The WebSocket route is skipped: its handler lives for the whole connection.
func (a *API) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == a.wsPath {
			next.ServeHTTP(w, r)
			return
		}

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		a.requestLogger(r).Infow("request_completed",
			"method", r.Method,
			"route", route,
			"status", rec.statusCode,
			"duration_ms", elapsedMillis(start))
	})
}

// corsMiddleware adds CORS headers for allowed origins and answers preflights.
func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := a.config.Server.AllowedOrigins
		switch {
		case origin == "":
		case slices.Contains(allowed, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(allowed, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// admissionMiddleware applies the HTTP admission profile to REST routes.
func (a *API) admissionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.admission == nil {
			next.ServeHTTP(w, r)
			return
		}

		req := admission.NewRequest(r, a.config.Server.TrustProxy, a.config.Server.TrustedProxyNetworks)
		decision, err := admission.Decide(r.Context(), a.admission, req)
		switch decision {
		case admission.Allow:
			next.ServeHTTP(w, r)
		case admission.RateLimited:
			w.Header().Set("Retry-After", strconv.Itoa(a.retryAfterSeconds()))
			a.writeError(w, r, http.StatusTooManyRequests, "too many requests", nil)
		case admission.Deny:
			a.writeError(w, r, http.StatusForbidden, "access denied", nil)
		default:
			a.writeError(w, r, http.StatusServiceUnavailable, "server security error", err)
		}
	})
}

// retryAfterSeconds is the HTTP window length rounded up to whole seconds.
func (a *API) retryAfterSeconds() int {
	window := a.config.Admission.HTTP.Window
	secs := int((window + time.Second - 1) / time.Second)
	return max(secs, 1)
}
