package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbrief/internal/config"
	"vitalbrief/internal/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.ServiceToken = types.SecretString("service-token")
	s, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDHonorsUpstream(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "upstream-id", seen)
}

func TestRecovererWritesStandardError(t *testing.T) {
	s := testServer(t)
	h := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
}

func TestServiceAuthHappyPath(t *testing.T) {
	s := testServer(t)
	var actor types.Actor
	h := s.ServiceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = types.GetActor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer service-token")
	req.Header.Set("X-Actor-ID", "user-1")
	req.Header.Set("X-Actor-Role", "patient")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.Actor{ID: "user-1", Role: types.RolePatient}, actor)
}

func TestServiceAuthRejections(t *testing.T) {
	s := testServer(t)
	h := s.ServiceAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "missing header",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenMissing,
		},
		{
			name: "wrong token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer wrong")
				r.Header.Set("X-Actor-ID", "user-1")
				r.Header.Set("X-Actor-Role", "patient")
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthTokenInvalid,
		},
		{
			name: "missing actor headers",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer service-token")
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthActorMissing,
		},
		{
			name: "unknown role",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer service-token")
				r.Header.Set("X-Actor-ID", "user-1")
				r.Header.Set("X-Actor-Role", "superuser")
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.ErrCodeAuthActorMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.wantCode), decodeError(t, rec).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(types.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(types.WithActor(req.Context(), types.Actor{ID: "u-1", Role: types.RolePatient}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(types.WithActor(req.Context(), types.Actor{ID: "a-1", Role: types.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer abc"))
	assert.Equal(t, "", extractBearerToken(""))
	assert.Equal(t, "", extractBearerToken("Basic abc"))
	assert.Equal(t, "", extractBearerToken("Bearer"))
}
