package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistHandler_GetAndReplace(t *testing.T) {
	env := newTestEnv(t)
	acct := env.account(t, "alice")
	path := "/api/v1/blacklist?account_id=" + acct.ID

	w := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["fdisk","mkfs","rm","sudo"]`, w.Body.String())

	w = env.do(t, http.MethodPut, path, gin.H{"commands": []string{" shutdown ", "rm", "rm", ""}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decodeMap(t, w)["status"])

	w = env.do(t, http.MethodGet, path, nil)
	assert.JSONEq(t, `["rm","shutdown"]`, w.Body.String())

	w = env.do(t, http.MethodPost, path, gin.H{"blacklist": []string{"reboot"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, path, nil)
	assert.JSONEq(t, `["reboot"]`, w.Body.String())
}

func TestBlacklistHandler_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	acct := env.account(t, "alice")
	path := "/api/v1/blacklist?account_id=" + acct.ID

	for _, body := range []interface{}{`{"commands": "rm"}`, `{}`, `not json`} {
		w := env.do(t, http.MethodPut, path, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w := env.do(t, http.MethodGet, path, nil)
	assert.JSONEq(t, `["fdisk","mkfs","rm","sudo"]`, w.Body.String())
}

func TestBlacklistHandler_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/blacklist", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
