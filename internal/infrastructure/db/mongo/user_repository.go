package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/emailauth/emailauth/internal/core/domain"
)

const usersCollection = "users"

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	FirstName    string     `bson:"first_name"`
	LastName     string     `bson:"last_name"`
	PasswordHash string     `bson:"password_hash"`
	IsStaff      bool       `bson:"is_staff"`
	IsActive     bool       `bson:"is_active"`
	IsSuperuser  bool       `bson:"is_superuser"`
	Groups       []string   `bson:"groups"`
	Permissions  []string   `bson:"permissions"`
	LastLogin    *time.Time `bson:"last_login"`
	DateJoined   time.Time  `bson:"date_joined"`
	Version      int64      `bson:"version"`
}

func toMongoUser(u *domain.User) mongoUser {
	mu := mongoUser{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		IsStaff:      u.IsStaff,
		IsActive:     u.IsActive,
		IsSuperuser:  u.IsSuperuser,
		Groups:       nonNil(u.Groups),
		Permissions:  nonNil(u.Permissions),
		DateJoined:   u.DateJoined.UTC(),
		Version:      u.Version,
	}
	if !u.LastLogin.IsZero() {
		ts := u.LastLogin.UTC()
		mu.LastLogin = &ts
	}
	return mu
}

func (mu mongoUser) toDomain() *domain.User {
	u := &domain.User{
		ID:           mu.ID,
		Email:        mu.Email,
		FirstName:    mu.FirstName,
		LastName:     mu.LastName,
		PasswordHash: mu.PasswordHash,
		IsStaff:      mu.IsStaff,
		IsActive:     mu.IsActive,
		IsSuperuser:  mu.IsSuperuser,
		Groups:       nonNil(mu.Groups),
		Permissions:  nonNil(mu.Permissions),
		DateJoined:   mu.DateJoined.UTC(),
		Version:      mu.Version,
	}
	if mu.LastLogin != nil {
		u.LastLogin = mu.LastLogin.UTC()
	}
	return u
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(user)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

// Update replaces the stored account with user, keyed by ID, provided the
// stored version still equals user.Version. On success user.Version is
// advanced to the stored value.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var version any = user.Version
	if user.Version == 0 {
		// Documents written before versioning have no version field.
		version = bson.M{"$in": bson.A{int64(0), nil}}
	}

	doc := toMongoUser(user)
	doc.Version = user.Version + 1
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": user.ID})
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if n == 0 {
			return domain.ErrUserNotFound
		}
		return domain.ErrConcurrentUpdate
	}
	user.Version = doc.Version
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
