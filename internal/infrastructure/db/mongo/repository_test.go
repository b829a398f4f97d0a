package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/emailauth/emailauth/internal/core/domain"
)

const usersNS = "emailauth.users"

func storedUser(joined time.Time, version int64) bson.D {
	return bson.D{
		{Key: "_id", Value: "u1"},
		{Key: "email", Value: "alice@example.com"},
		{Key: "first_name", Value: "Alice"},
		{Key: "password_hash", Value: "hash"},
		{Key: "is_active", Value: true},
		{Key: "groups", Value: bson.A{"editors"}},
		{Key: "permissions", Value: bson.A{"blog.add_post"}},
		{Key: "last_login", Value: nil},
		{Key: "date_joined", Value: joined},
		{Key: "version", Value: version},
	}
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	joined := time.Date(2024, 5, 6, 7, 8, 9, 123e6, time.UTC)

	mt.Run("create duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		_, err := NewUserRepository(mt.DB).Create(context.Background(), &domain.User{ID: "u2", Email: "alice@example.com"})
		assert.ErrorIs(mt, err, domain.ErrUserExists)
	})

	mt.Run("create fills empty lists", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		created, err := NewUserRepository(mt.DB).Create(context.Background(), &domain.User{ID: "u2", Email: "bob@example.com"})
		require.NoError(mt, err)
		assert.NotNil(mt, created.Groups)
		assert.NotNil(mt, created.Permissions)
	})

	mt.Run("find decodes stored account", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, usersNS, mtest.FirstBatch, storedUser(joined, 4)))

		u, err := NewUserRepository(mt.DB).FindByID(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "alice@example.com", u.Email)
		assert.Equal(mt, []string{"editors"}, u.Groups)
		assert.Equal(mt, []string{"blog.add_post"}, u.Permissions)
		assert.True(mt, u.LastLogin.IsZero())
		assert.True(mt, u.DateJoined.Equal(joined))
		assert.Equal(mt, time.UTC, u.DateJoined.Location())
		assert.Equal(mt, int64(4), u.Version)
	})

	mt.Run("find missing account", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := NewUserRepository(mt.DB).FindByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("update advances version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		u := &domain.User{ID: "u1", Email: "alice@example.com", IsActive: true, DateJoined: joined, Version: 4}
		require.NoError(mt, NewUserRepository(mt.DB).Update(context.Background(), u))
		assert.Equal(mt, int64(5), u.Version)
	})

	mt.Run("update with stale version", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		u := &domain.User{ID: "u1", Email: "alice@example.com", Version: 3}
		err := NewUserRepository(mt.DB).Update(context.Background(), u)
		assert.ErrorIs(mt, err, domain.ErrConcurrentUpdate)
		assert.Equal(mt, int64(3), u.Version)
	})

	mt.Run("update missing account", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch),
		)

		err := NewUserRepository(mt.DB).Update(context.Background(), &domain.User{ID: "ghost"})
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})
}

func TestGroupRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("all permissions", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "values", Value: bson.A{"blog.delete_post", "blog.add_post"}},
		))

		perms, err := NewGroupRepository(mt.DB).AllPermissions(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []string{"blog.add_post", "blog.delete_post"}, perms)
	})

	mt.Run("missing group", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "emailauth.groups", mtest.FirstBatch))

		_, err := NewGroupRepository(mt.DB).FindByName(context.Background(), "editors")
		assert.ErrorIs(mt, err, domain.ErrGroupNotFound)
	})

	mt.Run("permissions for groups", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "emailauth.groups", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "editors"}, {Key: "permissions", Value: bson.A{"blog.add_post"}}},
			bson.D{{Key: "name", Value: "admins"}, {Key: "permissions", Value: bson.A{"blog.delete_post"}}},
		))

		perms, err := NewGroupRepository(mt.DB).PermissionsForGroups(context.Background(), []string{"editors", "admins"})
		require.NoError(mt, err)
		assert.ElementsMatch(mt, []string{"blog.add_post", "blog.delete_post"}, perms)
	})
}
