package middleware

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/buildvault/backend/internal/services"
	"github.com/gin-gonic/gin"
)

const auditBodyLimit = 2000

var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|old_password|new_password|refresh_token|access_token|token|secret|api_key)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// AuditLog records write requests (POST, PUT, PATCH, DELETE) to system_logs
// once the handler has run. It is the only writer of request audit rows;
// handlers do not log their own writes. Multipart bodies are not captured.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		switch method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = truncateBody(maskSensitiveFields(string(bodyBytes)))
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		write := services.LogInfo
		switch {
		case status >= 500:
			write = services.LogError
		case status >= 400:
			write = services.LogWarning
		}
		write(module, action, formatAuditMessage(GetEmail(c), method, c.Request.URL.Path, status),
			GetUserIDPtr(c), c.ClientIP(), c.Request.UserAgent(), map[string]interface{}{
				"method":     method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"body":       bodySnippet,
				"request_id": c.GetString("request_id"),
				"audit":      true,
			})
	}
}

// parseRouteInfo maps "/api/admin/users/:id" + PATCH to ("Users", "Update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	path = strings.TrimPrefix(path, "admin/")

	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	} else {
		module = strings.ToUpper(module[:1]) + strings.ReplaceAll(module[1:], "-", " ")
	}

	switch method {
	case "POST":
		action = "Create"
	case "PUT", "PATCH":
		action = "Update"
	case "DELETE":
		action = "Delete"
	default:
		action = method
	}
	if strings.HasSuffix(fullPath, "/read") || strings.HasSuffix(fullPath, "/read-all") {
		action = "MarkRead"
	}
	return module, action
}

func formatAuditMessage(email, method, path string, status int) string {
	outcome := "Failed"
	if status >= 200 && status < 300 {
		outcome = "OK"
	}
	if email == "" {
		email = "anonymous"
	}
	return "[Audit] " + email + " " + method + " " + path + " -> " + outcome
}

func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllString(body, `$1"***"`)
}

// truncateBody caps body at auditBodyLimit bytes without splitting a rune.
func truncateBody(body string) string {
	if len(body) <= auditBodyLimit {
		return body
	}
	cut := auditBodyLimit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "...[truncated]"
}
