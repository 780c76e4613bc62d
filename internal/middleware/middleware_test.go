package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "middleware-test-secret"

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func authed(t *testing.T, token, query string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	got := map[string]string{}
	r := newRouter(JWTAuth(secret))
	r.GET("/me", func(c *gin.Context) {
		got["user_id"] = c.GetString("user_id")
		got["user_name"] = c.GetString("user_name")
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/me"+query, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, got
}

func TestJWTAuth_IssuedTokenIsAccepted(t *testing.T) {
	token, err := IssueToken(secret, "nimo-repair", "tech-7", "Anna", "anna@example.com", time.Hour)
	require.NoError(t, err)

	w, got := authed(t, token, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tech-7", got["user_id"])
	assert.Equal(t, "Anna", got["user_name"])
}

func TestJWTAuth_QueryTokenForSSE(t *testing.T) {
	token, err := IssueToken(secret, "nimo-repair", "tech-7", "Anna", "", time.Hour)
	require.NoError(t, err)

	w, got := authed(t, "", "?token="+token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tech-7", got["user_id"])
}

func TestJWTAuth_Rejects(t *testing.T) {
	expired, err := IssueToken(secret, "nimo-repair", "tech-7", "Anna", "", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("other-secret", "nimo-repair", "tech-7", "Anna", "", time.Hour)
	require.NoError(t, err)
	anonymous, err := IssueToken(secret, "nimo-repair", "", "Anna", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "abc.def.ghi"},
		{"expired", expired},
		{"wrong secret", foreign},
		{"no user", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, got := authed(t, tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, got["user_id"])
		})
	}
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "page=2", redactToken("page=2"))
	assert.Equal(t, "token=REDACTED", redactToken("token=eyJhbGciOi"))
	assert.Equal(t, "page=2&token=REDACTED&x=1", redactToken("page=2&token=eyJ&x=1"))
}

func TestLogger_RedactsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newRouter(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?token=secret-jwt", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "token=REDACTED", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := newRouter(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	r := newRouter(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
