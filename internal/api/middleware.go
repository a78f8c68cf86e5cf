package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	// maxRequestBodySize caps request bodies at 1 MiB.
	maxRequestBodySize = 1 << 20
)

type ctxKey struct{}

// withRequestID propagates the caller's X-Request-ID or assigns a UUID,
// echoing it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// requestID returns the ID set by withRequestID, or "".
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string) //nolint:errcheck // absent means ""
	return id
}

// accessLog logs every request at debug level and turns handler panics
// into a 500 logged at error level.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID(r.Context()),
			}
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error("handler panicked", append(attrs, "panic", p)...)
				if ww.Status() == 0 {
					writeInternalError(ww, "internal server error")
				}
				return
			}
			s.logger.Debug("http request", append(attrs,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)...)
		}()

		next.ServeHTTP(ww, r)
	})
}
