package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/emailauth/emailauth/internal/core/domain"
)

type stubAccounts map[string]*domain.User

func (s stubAccounts) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

type stubPerms struct {
	granted map[string]bool
	err     error
}

func (s stubPerms) HasPerm(_ context.Context, _ *domain.User, perm string) (bool, error) {
	return s.granted[perm], s.err
}

// runChain runs LoadAccount followed by guard for the token subject id.
func runChain(t *testing.T, accounts stubAccounts, guard echo.MiddlewareFunc, id string) (bool, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if id != "" {
		c.Set(KeyUserID, id)
	}

	called := false
	h := LoadAccount(accounts)(guard(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}))
	err := h(c)
	return called, err
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

var accounts = stubAccounts{
	"staff":   {ID: "staff", IsActive: true, IsStaff: true},
	"root":    {ID: "root", IsActive: true, IsSuperuser: true},
	"plain":   {ID: "plain", IsActive: true},
	"retired": {ID: "retired", IsActive: false, IsStaff: true, IsSuperuser: true},
}

func TestRequireStaff(t *testing.T) {
	for _, id := range []string{"staff", "root"} {
		if called, err := runChain(t, accounts, RequireStaff(), id); err != nil || !called {
			t.Fatalf("%s should pass, got %v", id, err)
		}
	}
	if called, err := runChain(t, accounts, RequireStaff(), "plain"); called || !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireSuperuser(t *testing.T) {
	if called, err := runChain(t, accounts, RequireSuperuser(), "root"); err != nil || !called {
		t.Fatalf("superuser should pass, got %v", err)
	}
	if called, err := runChain(t, accounts, RequireSuperuser(), "staff"); called || !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff, got %v", err)
	}
}

func TestGuards_UseStoredAccountNotClaims(t *testing.T) {
	// Deactivated admins are refused before any guard runs.
	if called, err := runChain(t, accounts, RequireSuperuser(), "retired"); called || !errors.Is(err, domain.ErrInactiveUser) {
		t.Fatalf("expected ErrInactiveUser, got %v", err)
	}

	// A demoted account is judged on its stored flags.
	demoted := stubAccounts{"ex": {ID: "ex", IsActive: true}}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set(KeyUserID, "ex")
	c.Set("is_superuser", true)
	err := LoadAccount(demoted)(RequireSuperuser()(func(c echo.Context) error { return nil }))(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for demoted account, got %v", err)
	}
}

func TestLoadAccount_UnknownOrMissingSubject(t *testing.T) {
	if _, err := runChain(t, accounts, RequireStaff(), "ghost"); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted account, got %v", err)
	}
	if _, err := runChain(t, accounts, RequireStaff(), ""); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 without subject, got %v", err)
	}
}

func TestRequirePerm(t *testing.T) {
	perms := stubPerms{granted: map[string]bool{"emailauth.email_user": true}}
	if called, err := runChain(t, accounts, RequirePerm(perms, "emailauth.email_user"), "plain"); err != nil || !called {
		t.Fatalf("granted permission should pass, got %v", err)
	}
	if called, err := runChain(t, accounts, RequirePerm(perms, "emailauth.delete_user"), "plain"); called || !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	failing := stubPerms{err: errors.New("store down")}
	if called, err := runChain(t, accounts, RequirePerm(failing, "emailauth.email_user"), "plain"); called || err == nil {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
