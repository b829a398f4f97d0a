package ports

import (
	"context"
	"time"

	"github.com/emailauth/emailauth/internal/core/domain"
)

// CreateUserInput carries the fields accepted when creating an account.
// An empty Password yields an account with an unusable password.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserManager creates, looks up and updates accounts.
type UserManager interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error)
	CreateSuperuser(ctx context.Context, in CreateUserInput) (*domain.User, error)
	// GetUser returns (nil, nil) when no account has the given email.
	GetUser(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)

	SetPassword(ctx context.Context, id, password string) error
	SetUnusablePassword(ctx context.Context, id string) error
	CheckPassword(user *domain.User, password string) bool
	SetActive(ctx context.Context, id string, active bool) (*domain.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) (*domain.User, error)
	AddToGroup(ctx context.Context, id, group string) (*domain.User, error)
	GrantPermission(ctx context.Context, id, perm string) (*domain.User, error)
	SaveGroup(ctx context.Context, group *domain.Group) error

	// UserPermissions lists the permissions the account holds. For an active
	// superuser this is every permission known to the group store plus its
	// own grants.
	UserPermissions(ctx context.Context, user *domain.User) ([]string, error)
	HasPerm(ctx context.Context, user *domain.User, perm string) (bool, error)
	HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error)

	EmailUser(ctx context.Context, id, subject, message, from string) error
}

// AuthService implements registration and login.
type AuthService interface {
	Register(ctx context.Context, in CreateUserInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
