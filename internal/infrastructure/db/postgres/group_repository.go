package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/emailauth/emailauth/internal/core/domain"
)

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// PermissionsForGroups returns the permissions of every named group that exists.
func (r *GroupRepository) PermissionsForGroups(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT permissions FROM auth_groups WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p pq.StringArray
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		perms = append(perms, p...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	return perms, nil
}

// AllPermissions returns every distinct permission granted to any group.
func (r *GroupRepository) AllPermissions(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT unnest(permissions) AS perm FROM auth_groups ORDER BY perm`)
	if err != nil {
		return nil, fmt.Errorf("all permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("all permissions: %w", err)
	}
	return perms, nil
}

func (r *GroupRepository) FindByName(ctx context.Context, name string) (*domain.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p pq.StringArray
	err := r.db.QueryRowContext(ctx, `SELECT permissions FROM auth_groups WHERE name = $1`, name).Scan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &domain.Group{Name: name, Permissions: nonNil(p)}, nil
}

// Save creates the group or replaces its permission list.
func (r *GroupRepository) Save(ctx context.Context, group *domain.Group) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_groups (name, permissions) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions`,
		group.Name, pq.Array(nonNil(group.Permissions)))
	if err != nil {
		return fmt.Errorf("save group: %w", err)
	}
	return nil
}
