package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/emailauth/emailauth/internal/core/domain"
)

// uniqueViolation is the SQLSTATE raised for a duplicate key.
const uniqueViolation = "23505"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, is_staff, is_active,
	is_superuser, group_names, permissions, last_login, date_joined`

const selectUser = `SELECT ` + userColumns + `, version FROM users`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.IsStaff, user.IsActive, user.IsSuperuser,
		pq.Array(nonNil(user.Groups)), pq.Array(nonNil(user.Permissions)),
		nullTime(user.LastLogin), user.DateJoined.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	created.Groups = nonNil(user.Groups)
	created.Permissions = nonNil(user.Permissions)
	return &created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		u         domain.User
		groups    pq.StringArray
		perms     pq.StringArray
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsStaff, &u.IsActive, &u.IsSuperuser,
		&groups, &perms, &lastLogin, &u.DateJoined, &u.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	u.Groups = nonNil(groups)
	u.Permissions = nonNil(perms)
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time.UTC()
	}
	u.DateJoined = u.DateJoined.UTC()
	return &u, nil
}

// Update writes user over the stored row provided the stored version still
// equals user.Version. On success user.Version is advanced to the stored value.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, first_name = $3, last_name = $4, password_hash = $5,
		 is_staff = $6, is_active = $7, is_superuser = $8, group_names = $9, permissions = $10,
		 last_login = $11, version = version + 1
		 WHERE id = $1 AND version = $12`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.IsStaff, user.IsActive, user.IsSuperuser,
		pq.Array(nonNil(user.Groups)), pq.Array(nonNil(user.Permissions)),
		nullTime(user.LastLogin), user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		return domain.ErrConcurrentUpdate
	}
	user.Version++
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
