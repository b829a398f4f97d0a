package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emailauth/emailauth/internal/core/domain"
)

// KeyAccount holds the *domain.User loaded by LoadAccount.
const KeyAccount = "account"

// AccountLoader fetches the stored account named by a token subject.
type AccountLoader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// PermissionChecker resolves direct and group permissions of an account.
type PermissionChecker interface {
	HasPerm(ctx context.Context, user *domain.User, perm string) (bool, error)
}

// LoadAccount reloads the account behind the token on every request so that
// deactivation and demotion take effect before the token expires. It must
// run after Auth.
func LoadAccount(users AccountLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := c.Get(KeyUserID).(string)
			if id == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			user, err := users.GetByID(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
				}
				return err
			}
			if !user.IsActive {
				return domain.ErrInactiveUser
			}
			c.Set(KeyAccount, user)
			return next(c)
		}
	}
}

// Account returns the account stored by LoadAccount, or nil.
func Account(c echo.Context) *domain.User {
	user, _ := c.Get(KeyAccount).(*domain.User)
	return user
}

// RequireStaff admits staff members and superusers.
func RequireStaff() echo.MiddlewareFunc {
	return require(func(_ echo.Context, u *domain.User) (bool, error) {
		return u.IsStaff || u.IsSuperuser, nil
	})
}

// RequireSuperuser admits superusers only.
func RequireSuperuser() echo.MiddlewareFunc {
	return require(func(_ echo.Context, u *domain.User) (bool, error) {
		return u.IsSuperuser, nil
	})
}

// RequirePerm admits accounts holding perm, directly or through a group.
func RequirePerm(perms PermissionChecker, perm string) echo.MiddlewareFunc {
	return require(func(c echo.Context, u *domain.User) (bool, error) {
		return perms.HasPerm(c.Request().Context(), u, perm)
	})
}

func require(allowed func(c echo.Context, u *domain.User) (bool, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := Account(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			ok, err := allowed(c, user)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
