package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/intellagent/scheduling-service/pkg/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger emits structured logs for every HTTP request.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}

			// WebSocket upgrades need the raw ResponseWriter for hijacking.
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				logger.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", reqID,
					"remote_ip", r.RemoteAddr,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"request_id", reqID,
				"remote_ip", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
