package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecli/safecli/internal/logger"
)

func panicRouter(verbose bool, msg string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(verbose))
	router.GET("/panic", func(c *gin.Context) {
		c.Set(AccountIDKey, "acct-1")
		panic(msg)
	})
	return router
}

func TestRecoveryVerboseIncludesStack(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(true, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	w := httptest.NewRecorder()
	panicRouter(true, "test panic").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	out := buf.String()
	assert.Contains(t, out, "recovered from panic")
	assert.Contains(t, out, "test panic")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "acct-1")
}

func TestRecoveryBriefWhenNotVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(false, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	w := httptest.NewRecorder()
	panicRouter(false, "brief panic").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	out := buf.String()
	assert.Contains(t, out, "brief panic")
	assert.NotContains(t, out, `"stack"`)
	assert.NotContains(t, out, `"headers"`)
}

func TestRecoveryRedactsCredentials(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(true, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	req := httptest.NewRequest(http.MethodGet, "/panic?account_id=secret-query", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set(EndpointTokenHeader, "ep_secret")
	w := httptest.NewRecorder()
	panicRouter(true, "sensitive panic").ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "ep_secret")
	assert.NotContains(t, out, "secret-query")
	assert.Contains(t, out, "<redacted>")
}
