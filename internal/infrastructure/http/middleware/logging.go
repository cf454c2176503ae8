package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	ctxutil "gestaoplus/ms_nfse_core/internal/infrastructure/context"
)

// statusRecorder captures the status code and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// RequestLogger emits one access-log line per request, leveled by status
// class (2xx/3xx info, 4xx warn, 5xx error). It also promotes chi's
// request ID to the correlation ID that tags every downstream call and
// transmission log row.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimw.GetReqID(r.Context())
			ctx := ctxutil.WithCorrelationID(r.Context(), requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rec.status,
				"duration_ms", float64(time.Since(start).Nanoseconds()) / 1e6,
				"bytes", rec.bytes,
			}
			if requestID != "" {
				attrs = append(attrs, "correlation_id", requestID, "request_id", requestID)
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}

			switch {
			case rec.status >= 500:
				log.Error("HTTP request", attrs...)
			case rec.status >= 400:
				log.Warn("HTTP request", attrs...)
			default:
				log.Info("HTTP request", attrs...)
			}
		})
	}
}
