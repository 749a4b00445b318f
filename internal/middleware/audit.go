package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/services"
)

const maxAuditBody = 2000

var sensitiveKeys = []string{"password", "old_password", "new_password", "refresh_token", "token", "secret"}

// AuditRecorder persists request audit entries.
type AuditRecorder interface {
	Record(entry services.AuditEntry)
}

// AuditLog records every write request (POST, PUT, PATCH, DELETE) as an
// "http" audit entry once the handler has finished. Multipart bodies are not
// captured.
func AuditLog(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if !isWriteMethod(method) {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = truncateBody(maskSensitiveFields(string(raw)))
		}

		c.Next()

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		recorder.Record(services.AuditEntry{
			EntityType: services.EntityTypeHTTP,
			Action:     method + " " + route,
			UserID:     uid,
			NewValue: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
				"body":   body,
			},
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func truncateBody(body string) string {
	if len(body) > maxAuditBody {
		return body[:maxAuditBody] + "...[truncated]"
	}
	return body
}

func maskSensitiveFields(body string) string {
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
	}
	return body
}

// maskJSONValue replaces every string value of "key" with ***.
func maskJSONValue(body, key string) string {
	needle := `"` + key + `"`
	var out strings.Builder
	rest := body
	for {
		idx := strings.Index(rest, needle)
		if idx == -1 {
			out.WriteString(rest)
			return out.String()
		}
		end := idx + len(needle)
		out.WriteString(rest[:end])
		rest = rest[end:]

		i := 0
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
			i++
		}
		if i >= len(rest) || rest[i] != ':' {
			continue
		}
		i++
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
			i++
		}
		if i >= len(rest) || rest[i] != '"' {
			continue
		}
		closing := closingQuote(rest[i+1:])
		out.WriteString(rest[:i+1])
		out.WriteString("***")
		if closing == -1 {
			return out.String()
		}
		rest = rest[i+1+closing:]
	}
}

// closingQuote returns the index of the first unescaped quote in s, or -1.
func closingQuote(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
