package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"familydose/internal/models"
	"familydose/internal/security"
	"familydose/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const IdentityContextKey ContextKey = "identity"

// Identity is the authenticated caller of a request
type Identity struct {
	models.Actor
	Connect string
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	limiter     *security.RateLimiter
	log         *zap.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(authService *service.AuthService, limiter *security.RateLimiter, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		limiter:     limiter,
		log:         logger,
	}
}

// RequireAuth resolves the bearer token into an Identity
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(AuthorizationHeader)
		if !strings.HasPrefix(header, BearerPrefix) {
			respondUnauthorized(w)
			return
		}

		actor, connect, err := m.authService.Authenticate(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
		if err != nil {
			m.log.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
			respondUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, Identity{Actor: actor, Connect: connect})
		next(w, r.WithContext(ctx))
	}
}

// RateLimit throttles attempts per client address
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.ClientIP(r)) {
			m.log.Warn("rate limited", zap.String("ip", security.ClientIP(r)), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: ErrTooManyRequests})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := security.RequestID(r)
		w.Header().Set(security.RequestIDHeader, requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// IdentityFromContext retrieves the caller from the request context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}
