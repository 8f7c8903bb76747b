package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		header string
		want   int
	}{
		{"disabled allows post", "", http.MethodPost, "/api/v1/groups/0/select", "", http.StatusNoContent},
		{"get is public", "secret", http.MethodGet, "/api/v1/groups", "", http.StatusNoContent},
		{"health check is public", "secret", http.MethodPost, "/healthz", "", http.StatusNoContent},
		{"post without header", "secret", http.MethodPost, "/api/v1/groups/0/select", "", http.StatusUnauthorized},
		{"post with wrong token", "secret", http.MethodPost, "/api/v1/groups/0/select", "Bearer nope", http.StatusUnauthorized},
		{"post without scheme", "secret", http.MethodPost, "/api/v1/groups/0/select", "secret", http.StatusUnauthorized},
		{"post with token", "secret", http.MethodPost, "/api/v1/groups/0/deselect", "Bearer secret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Middleware(Config{Token: tt.token})(ok)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
