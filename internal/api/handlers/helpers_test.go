package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/config"
)

const (
	testUserID  = "user-1"
	otherUserID = "user-2"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:       "test-secret",
		JwtTTL:          time.Hour,
		AppBaseURL:      "https://idleassets.example.com",
		ImageMaxSizeMB:  1,
		WsPingInterval:  30 * time.Second,
		WsWriteTimeout:  5 * time.Second,
		PasswordRegexp:  "^.{8,}$",
		SmtpFromAddress: "noreply@idleassets.example.com",
	}
}

// asUser stands in for AuthMiddleware in handler tests.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Next()
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}
