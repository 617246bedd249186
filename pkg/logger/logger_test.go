package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no credentials", "page=2&status=pending", "page=2&status=pending"},
		{"stream token", "token=eyJSECRET.ACCESS.TOKEN", "token=%2A%2A%2A"},
		{"token among others", "page=1&token=abc", "page=1&token=%2A%2A%2A"},
		{"access_token", "access_token=abc", "access_token=%2A%2A%2A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactQuery(tt.raw); got != tt.want {
				t.Errorf("redactQuery(%q) = %q, expected %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGinLogger_HidesStreamToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	t.Cleanup(func() { Init("info") })

	r := gin.New()
	r.Use(GinLogger())
	r.GET("/api/events/notifications", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events/notifications?token=eyJSECRET.ACCESS.TOKEN", nil)
	r.ServeHTTP(w, req)

	line := buf.String()
	if strings.Contains(line, "eyJSECRET") {
		t.Fatalf("request log leaked the token: %s", line)
	}
	if !strings.Contains(line, `"query":"token=%2A%2A%2A"`) {
		t.Errorf("request log should keep a redacted query, got %s", line)
	}
}
