package core

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"vitalbrief/internal/types"
)

// requestIDHeader is the inbound header an upstream proxy may use to supply
// a request ID; absent that, one is generated.
const requestIDHeader = "X-Request-ID"

// responseCapture wraps an http.ResponseWriter to capture the status code
// written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter so http.ResponseController
// can reach features like Flush.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// RequestID assigns every request an ID, honoring one supplied by the
// upstream proxy, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

// Recoverer catches panics in the handler chain, logs the stack trace, and
// writes a standardized 500 response. It must be the outermost handler.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.Logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				resp := fmt.Sprintf(
					`{"error":{"code":"%s","message":"an unexpected error occurred","request_id":"%s"}}`,
					types.ErrCodeInternalUnexpected,
					types.GetRequestID(r.Context()),
				)
				_, _ = w.Write([]byte(resp))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs request metadata with the Authorization header value
// never included. Status >= 500 logs at error, >= 400 at warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rc, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if reqID := types.GetRequestID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}

			switch {
			case rc.statusCode >= 500:
				logger.Error("request completed", args...)
			case rc.statusCode >= 400:
				logger.Warn("request completed", args...)
			default:
				logger.Info("request completed", args...)
			}
		})
	}
}

// ServiceAuth authenticates requests from the platform gateway. The gateway
// terminates end-user auth itself and forwards the resolved identity:
//
//	Authorization: Bearer <shared service token>
//	X-Actor-ID:    resolved user ID
//	X-Actor-Role:  patient | provider | admin
//
// The token comparison is constant-time. Requests missing actor headers are
// rejected; this service never guesses an identity.
func (s *Server) ServiceAuth(next http.Handler) http.Handler {
	expected := []byte(s.Config.Auth.ServiceToken.Unmask())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing,
				"Authorization header with Bearer token is required", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid,
				"invalid service token", nil))
			return
		}

		actorID := r.Header.Get("X-Actor-ID")
		role := types.ActorRole(r.Header.Get("X-Actor-Role"))
		if actorID == "" || !validRole(role) {
			Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing,
				"X-Actor-ID and X-Actor-Role headers are required", nil))
			return
		}

		ctx := types.WithActor(r.Context(), types.Actor{ID: actorID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose actor does not hold one of the allowed
// roles. It runs inside ServiceAuth, so a missing actor is an auth bug, not
// a client error.
func RequireRole(roles ...types.ActorRole) func(http.Handler) http.Handler {
	allowed := make(map[types.ActorRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := types.GetActor(r.Context())
			if !ok {
				Error(w, r, types.NewAppError(types.ErrCodeAuthActorMissing,
					"no authenticated actor", nil))
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				Error(w, r, types.NewAppError(types.ErrCodePermissionRole,
					"insufficient role for this operation", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets standard security response headers on all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken parses an Authorization header value in the form
// "Bearer <token>", case-insensitive on the scheme.
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func validRole(role types.ActorRole) bool {
	switch role {
	case types.RolePatient, types.RoleProvider, types.RoleAdmin:
		return true
	}
	return false
}
