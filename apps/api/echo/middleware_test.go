package echoapi

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, key string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func Test_newAPIKeyMiddleware(t *testing.T) {
	var current atomic.Value
	current.Store(mustHash(t, "old-key"))

	app := echo.New()
	mw := newAPIKeyMiddleware(func() string { return current.Load().(string) })
	handler := mw(func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) })

	call := func(key string) error {
		req := httptest.NewRequest(http.MethodPost, "/v1/usage/reconcile", nil)
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		return handler(app.NewContext(req, httptest.NewRecorder()))
	}

	assert.Equal(t, errInvalidAPIKey, call(""))
	assert.Equal(t, errInvalidAPIKey, call("wrong"))
	assert.NoError(t, call("old-key"))
	assert.NoError(t, call("old-key"), "cached")

	current.Store(mustHash(t, "new-key"))
	assert.Equal(t, errInvalidAPIKey, call("old-key"), "a rotated hash drops the cached key")
	assert.NoError(t, call("new-key"))

	current.Store("")
	assert.Equal(t, errInvalidAPIKey, call("new-key"))
}
