package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"ctp/consts"
	"ctp/database"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const respMsgField = "message"

// Audit writes one AuditLog row per mutating request, off the request
// goroutine so a slow insert never adds to response latency.
func Audit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if !shouldAudit(c.Request.Method, c.FullPath()) {
			return
		}

		statusCode := c.Writer.Status()
		duration := int(time.Since(startTime).Milliseconds())
		action := determineAction(c.Request.Method)
		resource := determineResource(c.FullPath())

		userID, _ := database.CurrentActor(c.Request.Context())

		details := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"status_code": statusCode,
		}
		if len(requestBody) > 0 && len(requestBody) < 1024 && !isSensitivePath(c.FullPath()) {
			var reqData map[string]any
			if err := json.Unmarshal(requestBody, &reqData); err == nil {
				sanitizeRequestData(reqData)
				details["request"] = reqData
			}
		}
		detailsJSON, _ := json.Marshal(details)

		state := consts.AuditLogStateSuccess
		var errorMsg string
		if statusCode >= 400 {
			state = consts.AuditLogStateFailed
			if blw.body.Len() > 0 {
				var respData map[string]any
				if err := json.Unmarshal(blw.body.Bytes(), &respData); err == nil {
					if msg, ok := respData[respMsgField].(string); ok {
						errorMsg = msg
					}
				}
			}
		}

		entry := &database.AuditLog{
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			DurationMs: duration,
			Action:     action,
			Details:    string(detailsJSON),
			ErrorMsg:   errorMsg,
			UserID:     userID,
			Resource:   resource,
			State:      state,
		}

		go func() {
			if err := db.Create(entry).Error; err != nil {
				logrus.Errorf("audit: failed to persist log entry: %v", err)
			}
		}()
	}
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func shouldAudit(method, path string) bool {
	if method == http.MethodGet {
		return false
	}
	excluded := []string{"/health", "/metrics"}
	for _, e := range excluded {
		if path == e {
			return false
		}
	}
	return true
}

func determineAction(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return "ACCESS"
	}
}

// determineResource extracts the resource segment from a gin route template
// such as "/api/v1/courses/:id" -> "course".
func determineResource(path string) consts.ResourceName {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	var result string
	switch {
	case len(parts) == 1:
		result = parts[0]
	case len(parts) >= 3 && parts[0] == "api" && strings.HasPrefix(parts[1], "v"):
		result = parts[2]
	case len(parts) >= 2:
		result = parts[1]
	}
	result = strings.TrimSuffix(result, "s")
	if result == "" {
		return "unknown"
	}
	return consts.ResourceName(result)
}

func isSensitivePath(path string) bool {
	sensitive := []string{"/auth/login", "/auth/register", "/users/password"}
	for _, s := range sensitive {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

func sanitizeRequestData(data map[string]any) {
	fields := []string{"password", "token", "secret", "access_token", "refresh_token"}
	for _, f := range fields {
		if _, exists := data[f]; exists {
			data[f] = "***REDACTED***"
		}
	}
}
