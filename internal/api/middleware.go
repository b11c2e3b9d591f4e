package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"leihlokal/internal/metrics"
)

// SessionCookie carries the visitor's session id.
const SessionCookie = "leihlokal_session"

const sessionMaxAge = 30 * 24 * time.Hour

type sessionKey struct{}

// sessionMiddleware assigns every visitor a uuid session id.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionKey{}).(string)
	return id
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTP(route, status, elapsed.Seconds())

		evt := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			evt = s.logger.Warn()
		}
		evt.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

// requireAPIKey guards admin routes; without a configured key they are hidden.
func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := s.cfg.HTTP.AdminAPIKey
		if key == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sessionLimiter rate limits submissions per session.
type sessionLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newSessionLimiter(perMinute int) *sessionLimiter {
	if perMinute <= 0 {
		return &sessionLimiter{entries: map[string]*limiterEntry{}, limit: rate.Inf}
	}
	return &sessionLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
	}
}

func (l *sessionLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

func (l *sessionLimiter) cleanup(before time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(before) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *sessionLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(sessionID(r)) {
			writeError(w, http.StatusTooManyRequests, "Zu viele Anfragen. Bitte warten Sie einen Moment.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
