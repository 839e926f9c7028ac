package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/api/routes"
	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/database"
	"github.com/safecli/safecli/internal/models"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	svc    *routes.Services
	cfg    config.Config
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		JWTSecret:         "test-secret",
		AllowAccountParam: true,
		DefaultBlacklist:  []string{"rm", "sudo", "fdisk", "mkfs"},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	db := database.OpenTestDB(t)
	svc := routes.NewServices(db, cfg)
	r := gin.New()
	routes.Register(r, db, cfg, svc, nil)
	return &testEnv{router: r, db: db, svc: svc, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// account registers through the auth service so the default blacklist is seeded.
func (e *testEnv) account(t *testing.T, username string) *models.Account {
	t.Helper()
	acct, err := e.svc.Auth.Register(t.Context(), username, username+"@example.com", "password123")
	require.NoError(t, err)
	return acct
}

func (e *testEnv) endpoint(t *testing.T, accountID, hostname, osUser string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/agent/register", gin.H{
		"account_id": accountID,
		"name":       hostname,
		"hostname":   hostname,
		"os_user":    osUser,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["endpoint_id"], resp["endpoint_token"]
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
