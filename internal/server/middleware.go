package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	errordefs "github.com/awadmin/awadmin-api-go/internal/errors"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/token"
	"github.com/google/uuid"
)

const (
	collectionAllow = "GET, POST, HEAD, OPTIONS"
	detailAllow     = "GET, PUT, PATCH, DELETE, HEAD, OPTIONS"
)

// withCORS sets CORS headers, answers preflight requests and assigns the
// correlation id of every request.
func (m *Mux) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && m.originAllowed(origin)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", "X-Correlation-Id, X-Total-Count, Location")
			w.Header().Add("Vary", "Origin")
		}

		// Handle CORS preflight requests
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		next.ServeHTTP(w, r)
	})
}

func (m *Mux) originAllowed(origin string) bool {
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

// statusRecorder captures the status code and error of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	err    error
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// withMiddleware authenticates protected routes, then logs and measures
// every request.
func (m *Mux) withMiddleware(route string, h http.HandlerFunc, protected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
			m.logRequest(r, status, time.Since(start), correlationID(r.Context()), rec.err)
		}()

		if protected {
			claims, err := m.authenticate(r)
			if err != nil {
				m.fail(rec, r, err)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))
		}

		h(rec, r)
	}
}

// authenticate verifies the bearer access token of r.
func (m *Mux) authenticate(r *http.Request) (*token.Claims, *errordefs.Error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errordefs.New(errordefs.API_AUTHN, "Authentication credentials were not provided.", "")
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
		return nil, errordefs.New(errordefs.API_AUTHN, "invalid Authorization header format", "")
	}

	claims, err := m.issuer.Verify(strings.TrimSpace(tokenString), token.TypeAccess)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, token.ErrExpired):
		return nil, errordefs.New(errordefs.API_TOKEN_EXPIRED, "Token is expired.", "")
	case errors.Is(err, token.ErrWrongType):
		return nil, errordefs.New(errordefs.API_TOKEN_INVALID, "Token has wrong type.", "")
	default:
		return nil, errordefs.New(errordefs.API_TOKEN_INVALID, "Given token not valid for any token type.", "")
	}
}

// resourceHandler serves one action of a resource.
type resourceHandler func(w http.ResponseWriter, r *http.Request, res *model.Resource)

// resource binds h to res and restricts admin-only resources to staff users.
func (m *Mux) resource(res *model.Resource, h resourceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if res.AdminOnly {
			if claims := claimsFrom(r.Context()); claims == nil || !claims.Staff {
				m.fail(w, r, errordefs.New(errordefs.API_AUTHZ, "You do not have permission to perform this action.", ""))
				return
			}
		}
		h(w, r, res)
	}
}

// methodNotAllowed answers requests whose method the route does not serve.
func (m *Mux) methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		m.fail(w, r, errordefs.New(errordefs.API_METHOD_NOT_ALLOWED, `Method "`+r.Method+`" not allowed.`, ""))
	}
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}

func claimsFrom(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims
}

// username returns the authenticated username, or "" for anonymous requests.
func username(ctx context.Context) string {
	if claims := claimsFrom(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}

	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if user := username(r.Context()); user != "" {
		attrs = append(attrs, slog.String("user", user))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(r.Context(), level, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}
