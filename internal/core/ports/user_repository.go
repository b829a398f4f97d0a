package ports

import (
	"context"

	"github.com/emailauth/emailauth/internal/core/domain"
)

// UserRepository defines the interface for account persistence.
// Lookups return domain.ErrUserNotFound when no account matches, and Create
// returns domain.ErrUserExists when the email is already taken.
//
// Update only succeeds when the stored version equals user.Version; it then
// increments user.Version. A stale version yields domain.ErrConcurrentUpdate.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// GroupRepository resolves the permissions attached to groups.
type GroupRepository interface {
	// PermissionsForGroups returns the union of permissions of the named
	// groups. Unknown group names are ignored.
	PermissionsForGroups(ctx context.Context, names []string) ([]string, error)
	// AllPermissions returns every permission attached to any group.
	AllPermissions(ctx context.Context) ([]string, error)
	FindByName(ctx context.Context, name string) (*domain.Group, error)
	Save(ctx context.Context, group *domain.Group) error
}
