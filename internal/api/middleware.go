package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TraceHeader carries the trace id between callers and the records API.
const TraceHeader = "X-Clinic-Trace"

type traceKey struct{}

// Trace tags every request with a trace id, taken from TraceHeader when the
// caller sent one, and puts a request-scoped logger carrying it on the context.
func Trace(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace := r.Header.Get(TraceHeader)
			if _, err := uuid.Parse(trace); err != nil {
				trace = uuid.NewString()
			}
			w.Header().Set(TraceHeader, trace)

			reqLog := log.With().Str("trace", trace).Logger()
			ctx := context.WithValue(r.Context(), traceKey{}, trace)
			ctx = reqLog.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TraceID returns the trace id Trace stored on ctx.
func TraceID(ctx context.Context) string {
	trace, _ := ctx.Value(traceKey{}).(string)
	return trace
}

// AccessLog writes one line per request through the logger Trace attached.
// Server errors log at error level.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log := zerolog.Ctx(r.Context())
		ev := log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		ev.Str("verb", r.Method).
			Str("route", route).
			Str("table", chi.URLParam(r, "table")).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Int64("elapsed_ms", time.Since(began).Milliseconds()).
			Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}
