package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173", "https://board.contact.local"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name          string
		origin        string
		method        string
		requestMethod string // Access-Control-Request-Method of a preflight
		requestHeader string // Access-Control-Request-Headers of a preflight
		wantOrigin    string
	}{
		{
			name:       "board read from dashboard",
			origin:     "http://localhost:5173",
			method:     http.MethodGet,
			wantOrigin: "http://localhost:5173",
		},
		{
			name:       "unknown origin",
			origin:     "http://intruder.local",
			method:     http.MethodGet,
			wantOrigin: "",
		},
		{
			name:          "preflight favorite pin",
			origin:        "https://board.contact.local",
			method:        http.MethodOptions,
			requestMethod: http.MethodPut,
			requestHeader: "Authorization, Content-Type",
			wantOrigin:    "https://board.contact.local",
		},
		{
			name:          "preflight favorite unpin",
			origin:        "http://localhost:5173",
			method:        http.MethodOptions,
			requestMethod: http.MethodDelete,
			requestHeader: "Authorization",
			wantOrigin:    "http://localhost:5173",
		},
		{
			name:          "preflight unused method",
			origin:        "http://localhost:5173",
			method:        http.MethodOptions,
			requestMethod: http.MethodPatch,
			wantOrigin:    "",
		},
		{
			name:          "preflight unknown header",
			origin:        "http://localhost:5173",
			method:        http.MethodOptions,
			requestMethod: http.MethodPost,
			requestHeader: "X-CSRF-Token",
			wantOrigin:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/favorites/alice", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}
			if tt.requestHeader != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.requestHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
				t.Errorf("Access-Control-Allow-Credentials = %q, want none", got)
			}
			if tt.requestMethod != "" && tt.wantOrigin != "" {
				if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.requestMethod {
					t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, tt.requestMethod)
				}
			}
		})
	}
}
