package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// requestIDMiddleware echoes or generates X-Request-ID and stores it in the
// request context.
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeRequestID(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		a.logger.Debugw("request_started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path)

		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// sanitizeRequestID keeps alphanumerics, dashes and underscores, truncated
// to maxRequestIDLength.
func sanitizeRequestID(id string) string {
	if id == "" {
		return ""
	}
	out := make([]byte, 0, min(len(id), maxRequestIDLength))
	for i := 0; i < len(id) && len(out) < maxRequestIDLength; i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		}
	}
	return string(out)
}

// requestLogger returns the API logger with the request id attached, plus
// the token subject on authenticated requests.
func (a *API) requestLogger(r *http.Request) *zap.SugaredLogger {
	id, ok := GetRequestID(r.Context())
	if !ok || id == "" {
		id = "unknown"
	}
	logger := a.logger.With("request_id", id)
	if subject, ok := GetSubject(r.Context()); ok {
		logger = logger.With("subject", subject)
	}
	return logger
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// elapsedMillis is used for completion logs.
func elapsedMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
