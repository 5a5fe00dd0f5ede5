package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorgate/tutorgate/internal/config"
)

func newAuthedHandler(t *testing.T, apiKey string) http.Handler {
	t.Helper()

	manager := config.NewManager(t.TempDir())
	require.NoError(t, manager.Save(&config.Config{APIKey: apiKey}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewAuthMiddleware(manager, logger)(next)
}

func TestAuthMiddleware(t *testing.T) {
	handler := newAuthedHandler(t, "secret")

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		expected int
	}{
		{
			name:     "bearer token accepted",
			path:     "/v1/ask",
			headers:  map[string]string{"Authorization": "Bearer secret"},
			expected: http.StatusOK,
		},
		{
			name:     "x-api-key accepted",
			path:     "/v1/ask",
			headers:  map[string]string{"X-API-Key": "secret"},
			expected: http.StatusOK,
		},
		{
			name:     "wrong key rejected",
			path:     "/v1/ask",
			headers:  map[string]string{"Authorization": "Bearer wrong"},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "missing key rejected",
			path:     "/v1/ask",
			expected: http.StatusUnauthorized,
		},
		{
			name:     "health bypasses auth",
			path:     "/health",
			expected: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestAuthMiddleware_EmptyKeyDisablesCheck(t *testing.T) {
	handler := newAuthedHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
