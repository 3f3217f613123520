package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		status int
	}{
		{"sem token configurado", "", "", http.StatusOK},
		{"header ausente", "s3cret", "", http.StatusUnauthorized},
		{"token errado", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"esquema errado", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"token correto", "s3cret", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AdminAuth(tt.token)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, rec.Body.String())
			}
		})
	}
}
