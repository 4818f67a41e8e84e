package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"securechat/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func adminProbe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if utils.IsAdmin(r.Context()) {
			w.Write([]byte("admin"))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestAdminSession(t *testing.T) {
	valid, err := utils.GenerateJWT("admin@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateJWT("admin@example.com", testSecret, -time.Hour)
	require.NoError(t, err)
	foreign, err := utils.GenerateJWT("admin@example.com", "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "no header", header: "", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "admin"},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantBody: "admin"},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "malformed header", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
	}

	handler := AdminSession(testSecret)(adminProbe())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	token, err := utils.GenerateJWT("admin@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	handler := AdminSession(testSecret)(RequireAdmin(adminProbe()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Admin session required"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
}
