/*
middleware.go - Authentication, logging, and metrics middleware

PURPOSE:
  The per-request plumbing around the handlers: bearer-token
  authentication resolving the caller identity, structured request
  logging, and HTTP latency metrics.

IDENTITY:
  RequireAuth validates the Authorization header and stores the caller's
  UserID in the request context. Handlers read it with callerID. The role
  claim inside the token is ignored; authorization re-resolves the role
  from the directory on every check.

SEE ALSO:
  - identity/token.go: Token validation
  - metrics/metrics.go: The collectors observed here
*/
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Nsarob/Save-a-penny/metrics"
	"github.com/Nsarob/Save-a-penny/procure"
)

type contextKey string

const identityKey contextKey = "identity"

// callerID returns the authenticated caller of a request. Empty outside
// RequireAuth-wrapped routes.
func callerID(r *http.Request) procure.UserID {
	id, _ := r.Context().Value(identityKey).(procure.UserID)
	return id
}

// RequireAuth rejects requests without a valid bearer token and injects the
// caller identity into the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := h.Tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, procure.UserID(claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request with method, path, status, and
// duration.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// HTTPMetrics observes request latency per method, route pattern, and status.
func HTTPMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
