package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/cache"
	"ctp/internal/permission"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider always resolves to principal, or rejects every request when
// principal is nil.
type stubProvider struct {
	principal *auth.Principal
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Authenticate(ctx context.Context, r *http.Request) (*auth.Principal, auth.ProviderResult, error) {
	if s.principal == nil {
		return nil, auth.ResultNotApplicable, nil
	}
	return s.principal, auth.ResultOK, nil
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestAuthenticateStampsPrincipalOnSuccess(t *testing.T) {
	p := auth.NewPrincipal(1, false, false, nil, nil)
	registry := auth.NewRegistry(stubProvider{principal: p})

	c, w := newTestContext()
	Authenticate(registry)(c)

	require.False(t, c.IsAborted())
	require.Equal(t, http.StatusOK, w.Code)
	got, ok := CurrentPrincipal(c)
	require.True(t, ok)
	assert.Equal(t, 1, got.UserID)
}

func TestAuthenticateRejectsWithoutCredential(t *testing.T) {
	registry := auth.NewRegistry(stubProvider{principal: nil})

	c, w := newTestContext()
	Authenticate(registry)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthenticateLetsUnauthenticatedThrough(t *testing.T) {
	registry := auth.NewRegistry(stubProvider{principal: nil})

	c, w := newTestContext()
	OptionalAuthenticate(registry)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
	_, ok := CurrentPrincipal(c)
	assert.False(t, ok)
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	c, w := newTestContext()
	c.Set(principalKey, auth.NewPrincipal(1, false, false, nil, nil))

	RequireAdmin()(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	c, w := newTestContext()
	c.Set(principalKey, auth.NewPrincipal(1, true, false, nil, nil))

	RequireAdmin()(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}

func newTestEngine(t *testing.T) *permission.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return permission.New(nil, cache.New(rdb))
}

func TestRequirePermissionAbortsWithoutPrincipal(t *testing.T) {
	engine := newTestEngine(t)
	c, w := newTestContext()

	RequirePermission(engine, consts.ResourceUser, consts.ActionRead)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermissionAllowsAdmin(t *testing.T) {
	engine := newTestEngine(t)
	c, w := newTestContext()
	c.Set(principalKey, auth.NewPrincipal(1, true, false, nil, nil))

	RequirePermission(engine, consts.ResourceUser, consts.ActionRead)(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionDeniesWithoutClaim(t *testing.T) {
	engine := newTestEngine(t)
	c, w := newTestContext()
	c.Set(principalKey, auth.NewPrincipal(2, false, false, nil, nil))

	RequirePermission(engine, consts.ResourceUser, consts.ActionRead)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}
