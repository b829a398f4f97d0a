package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/ports"
)

// maxUpdateAttempts bounds the read-modify-write retries on a version clash.
const maxUpdateAttempts = 3

// UserManager creates and maintains email-identified accounts.
type UserManager struct {
	users       ports.UserRepository
	groups      ports.GroupRepository
	mail        ports.MailQueue
	defaultFrom string
	validate    *validator.Validate
	log         zerolog.Logger

	cost  int
	now   func() time.Time
	newID func() string
}

func NewUserManager(
	users ports.UserRepository,
	groups ports.GroupRepository,
	mail ports.MailQueue,
	defaultFrom string,
	log zerolog.Logger,
) *UserManager {
	return &UserManager{
		users:       users,
		groups:      groups,
		mail:        mail,
		defaultFrom: defaultFrom,
		validate:    validator.New(),
		log:         log,
		cost:        bcrypt.DefaultCost,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:       uuid.NewString,
	}
}

// CreateUser creates a regular account. An empty password leaves the
// account with an unusable password.
func (m *UserManager) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	return m.createUser(ctx, in, false, false)
}

// CreateSuperuser creates an account with staff and superuser status.
func (m *UserManager) CreateSuperuser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	if in.Password == "" {
		return nil, domain.ErrPasswordRequired
	}
	return m.createUser(ctx, in, true, true)
}

func (m *UserManager) createUser(ctx context.Context, in ports.CreateUserInput, isStaff, isSuperuser bool) (*domain.User, error) {
	if in.Email == "" {
		return nil, domain.ErrEmailRequired
	}
	email := domain.NormalizeEmail(in.Email)
	if err := m.validate.Var(email, "email,max=255"); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !domain.ValidName(in.FirstName) || !domain.ValidName(in.LastName) {
		return nil, domain.ErrInvalidName
	}

	now := m.now()
	user := &domain.User{
		ID:          m.newID(),
		Email:       email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		IsStaff:     isStaff,
		IsActive:    true,
		IsSuperuser: isSuperuser,
		Groups:      []string{},
		Permissions: []string{},
		LastLogin:   now,
		DateJoined:  now,
	}
	hash, err := m.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	created, err := m.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("user_id", created.ID).
		Bool("is_staff", created.IsStaff).
		Bool("is_superuser", created.IsSuperuser).
		Msg("user created")
	return created, nil
}

// GetUser looks an account up by email after normalising it. It returns
// (nil, nil) when no account matches.
func (m *UserManager) GetUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := m.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (m *UserManager) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.users.FindByID(ctx, id)
}

// SetPassword hashes and stores a new password for the account.
func (m *UserManager) SetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		return domain.ErrPasswordRequired
	}
	hash, err := m.hashPassword(password)
	if err != nil {
		return err
	}
	_, err = m.update(ctx, id, func(u *domain.User) bool {
		u.PasswordHash = hash
		return true
	})
	if err != nil {
		return err
	}
	m.log.Info().Str("user_id", id).Msg("password changed")
	return nil
}

// SetUnusablePassword marks the account as having no password at all.
func (m *UserManager) SetUnusablePassword(ctx context.Context, id string) error {
	_, err := m.update(ctx, id, func(u *domain.User) bool {
		u.PasswordHash = domain.UnusablePassword(m.newID())
		return true
	})
	return err
}

// CheckPassword reports whether password matches the stored hash.
func (m *UserManager) CheckPassword(user *domain.User, password string) bool {
	if !user.HasUsablePassword() || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// hashPassword returns an unusable marker for an empty password.
func (m *UserManager) hashPassword(password string) (string, error) {
	if password == "" {
		return domain.UnusablePassword(m.newID()), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// update loads the account, applies change and stores the result. A write
// that loses to a concurrent one is retried on a fresh copy. change returns
// false when there is nothing to store.
func (m *UserManager) update(ctx context.Context, id string, change func(u *domain.User) bool) (*domain.User, error) {
	for attempt := 1; ; attempt++ {
		user, err := m.users.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !change(user) {
			return user, nil
		}
		err = m.users.Update(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt == maxUpdateAttempts {
			return nil, err
		}
		m.log.Debug().Str("user_id", id).Int("attempt", attempt).Msg("concurrent update, retrying")
	}
}

// SetActive toggles the active flag. Accounts are deactivated instead of
// being deleted.
func (m *UserManager) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	changed := false
	user, err := m.update(ctx, id, func(u *domain.User) bool {
		changed = u.IsActive != active
		u.IsActive = active
		return changed
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set active: %w", err)
	}
	if changed {
		m.log.Info().Str("user_id", id).Bool("is_active", active).Msg("user activation changed")
	}
	return user, nil
}

// RecordLogin stamps the last login time and returns the stored account.
func (m *UserManager) RecordLogin(ctx context.Context, id string, at time.Time) (*domain.User, error) {
	return m.update(ctx, id, func(u *domain.User) bool {
		u.LastLogin = at
		return true
	})
}

// AddToGroup adds the account to an existing group.
func (m *UserManager) AddToGroup(ctx context.Context, id, group string) (*domain.User, error) {
	if _, err := m.groups.FindByName(ctx, group); err != nil {
		return nil, err
	}
	user, err := m.update(ctx, id, func(u *domain.User) bool {
		if u.InGroup(group) {
			return false
		}
		u.Groups = append(u.Groups, group)
		return true
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add to group: %w", err)
	}
	return user, nil
}

// GrantPermission grants a single permission directly to the account.
func (m *UserManager) GrantPermission(ctx context.Context, id, perm string) (*domain.User, error) {
	if !domain.ValidPermission(perm) {
		return nil, domain.ErrInvalidPermission
	}
	user, err := m.update(ctx, id, func(u *domain.User) bool {
		for _, p := range u.Permissions {
			if p == perm {
				return false
			}
		}
		u.Permissions = append(u.Permissions, perm)
		return true
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("grant permission: %w", err)
	}
	return user, nil
}

// SaveGroup creates a group or replaces its permissions.
func (m *UserManager) SaveGroup(ctx context.Context, group *domain.Group) error {
	if group.Name == "" {
		return domain.ErrInvalidGroup
	}
	for _, p := range group.Permissions {
		if !domain.ValidPermission(p) {
			return domain.ErrInvalidPermission
		}
	}
	return m.groups.Save(ctx, group)
}

func (m *UserManager) groupPermissions(ctx context.Context, user *domain.User) ([]string, error) {
	if len(user.Groups) == 0 {
		return nil, nil
	}
	perms, err := m.groups.PermissionsForGroups(ctx, user.Groups)
	if err != nil {
		return nil, fmt.Errorf("group permissions: %w", err)
	}
	return perms, nil
}

// UserPermissions returns every permission the account holds, directly or
// through its groups. An active superuser holds every permission the group
// store knows about.
func (m *UserManager) UserPermissions(ctx context.Context, user *domain.User) ([]string, error) {
	if user.IsActive && user.IsSuperuser {
		all, err := m.groups.AllPermissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("all permissions: %w", err)
		}
		return user.AllPermissions(all), nil
	}
	groupPerms, err := m.groupPermissions(ctx, user)
	if err != nil {
		return nil, err
	}
	return user.AllPermissions(groupPerms), nil
}

func (m *UserManager) HasPerm(ctx context.Context, user *domain.User, perm string) (bool, error) {
	if !user.IsActive {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	groupPerms, err := m.groupPermissions(ctx, user)
	if err != nil {
		return false, err
	}
	return user.HasPerm(perm, groupPerms), nil
}

func (m *UserManager) HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error) {
	if !user.IsActive {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	groupPerms, err := m.groupPermissions(ctx, user)
	if err != nil {
		return false, err
	}
	return user.HasModulePerms(appLabel, groupPerms), nil
}

// EmailUser queues a message to the account's address. An empty from falls
// back to the configured default sender.
func (m *UserManager) EmailUser(ctx context.Context, id, subject, message, from string) error {
	user, err := m.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if from == "" {
		from = m.defaultFrom
	}
	err = m.mail.Enqueue(ports.Mail{
		From:    from,
		To:      []string{user.Email},
		Subject: subject,
		Body:    message,
	})
	if err != nil {
		return fmt.Errorf("email user: %w", err)
	}
	m.log.Debug().Str("user_id", id).Str("subject", subject).Msg("mail queued")
	return nil
}
