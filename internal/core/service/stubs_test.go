package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	byID      map[string]*domain.User
	createErr error
	findErr   error
	updateErr error
	updates   int

	// beforeUpdate runs ahead of every Update, letting a test slip in a
	// competing write.
	beforeUpdate func(r *stubUserRepo)
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Groups = append([]string(nil), u.Groups...)
	clone.Permissions = append([]string(nil), u.Permissions...)
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.byID[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook(r)
	}
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return domain.ErrConcurrentUpdate
	}
	user.Version++
	r.byID[user.ID] = cloneUser(user)
	r.updates++
	return nil
}

// touch applies change to the stored account as an unrelated writer would.
func (r *stubUserRepo) touch(id string, change func(u *domain.User)) {
	u := r.byID[id]
	change(u)
	u.Version++
}

type stubGroupRepo struct {
	groups  map[string]*domain.Group
	permErr error
}

func newStubGroupRepo(groups ...domain.Group) *stubGroupRepo {
	r := &stubGroupRepo{groups: make(map[string]*domain.Group)}
	for i := range groups {
		g := groups[i]
		r.groups[g.Name] = &g
	}
	return r
}

func (r *stubGroupRepo) PermissionsForGroups(_ context.Context, names []string) ([]string, error) {
	if r.permErr != nil {
		return nil, r.permErr
	}
	var out []string
	for _, n := range names {
		if g, ok := r.groups[n]; ok {
			out = append(out, g.Permissions...)
		}
	}
	return out, nil
}

func (r *stubGroupRepo) AllPermissions(_ context.Context) ([]string, error) {
	if r.permErr != nil {
		return nil, r.permErr
	}
	var out []string
	for _, g := range r.groups {
		out = append(out, g.Permissions...)
	}
	return out, nil
}

func (r *stubGroupRepo) FindByName(_ context.Context, name string) (*domain.Group, error) {
	g, ok := r.groups[name]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	clone := *g
	return &clone, nil
}

func (r *stubGroupRepo) Save(_ context.Context, group *domain.Group) error {
	clone := *group
	r.groups[group.Name] = &clone
	return nil
}

type stubMailQueue struct {
	queued []ports.Mail
	err    error
}

func (q *stubMailQueue) Enqueue(m ports.Mail) error {
	if q.err != nil {
		return q.err
	}
	q.queued = append(q.queued, m)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

func newTestManager(repo *stubUserRepo, groups *stubGroupRepo, mail *stubMailQueue) *UserManager {
	m := NewUserManager(repo, groups, mail, "noreply@example.com", zerolog.Nop())
	m.cost = bcrypt.MinCost
	m.now = func() time.Time { return fixedNow }
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return m
}
