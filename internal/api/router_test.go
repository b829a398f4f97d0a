package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailauth/emailauth/internal/api/handler"
	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/ports"
)

const testSecret = "router-secret"

// routerUsers serves stored accounts by id. Every token in these tests
// claims superuser rights so that only the stored flags decide access.
type routerUsers struct {
	ports.UserManager
	accounts map[string]*domain.User
}

func (r routerUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (r routerUsers) HasPerm(_ context.Context, user *domain.User, perm string) (bool, error) {
	if !user.IsActive {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	return slices.Contains(user.Permissions, perm), nil
}

func newTestRouter() http.Handler {
	return NewRouter(Dependencies{
		Users: routerUsers{accounts: map[string]*domain.User{
			"u1":      {ID: "u1", Email: "u1@example.com", IsActive: true},
			"staff":   {ID: "staff", Email: "staff@example.com", IsActive: true, IsStaff: true},
			"root":    {ID: "root", Email: "root@example.com", IsActive: true, IsSuperuser: true},
			"retired": {ID: "retired", Email: "retired@example.com", IsActive: false, IsSuperuser: true},
			"demoted": {ID: "demoted", Email: "demoted@example.com", IsActive: true},
			"mailer":  {ID: "mailer", Email: "mailer@example.com", IsActive: true, Permissions: []string{"emailauth.email_user"}},
		}},
		JWTSecret: testSecret,
		Readiness: map[string]handler.PingFunc{
			"store": func(context.Context) error { return nil },
		},
		Log: zerolog.Nop(),
	})
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          sub,
		"email":        sub + "@example.com",
		"is_staff":     true,
		"is_superuser": true,
		"exp":          time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health/ready", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", "").Code)
}

func TestRouter_AccountRoutesRequireToken(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/users/me", "").Code)

	rec := serve(r, http.MethodGet, "/users/me", bearer(t, "u1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"u1@example.com"`)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/users/me", bearer(t, "ghost")).Code)
}

func TestRouter_PrivilegeGuards(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/u2", bearer(t, "u1")).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u1", bearer(t, "staff")).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/groups/editors", bearer(t, "staff")).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u1", bearer(t, "root")).Code)
}

func TestRouter_DeactivatedAdminIsLockedOut(t *testing.T) {
	r := newTestRouter()
	token := bearer(t, "retired")

	rec := serve(r, http.MethodPut, "/users/u1/active", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "account is inactive")

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/groups/editors", token).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/me", token).Code)
}

func TestRouter_DemotedAdminLosesPrivileges(t *testing.T) {
	r := newTestRouter()
	token := bearer(t, "demoted")

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/me", token).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/u1", token).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/users/u1/active", token).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/users/u1/password", token).Code)
}

func TestRouter_EmailRequiresPermission(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/users/u1/email", bearer(t, "staff")).Code)
	// Past the guard the empty body fails validation.
	assert.Equal(t, http.StatusUnprocessableEntity, serve(r, http.MethodPost, "/users/u1/email", bearer(t, "mailer")).Code)
}
