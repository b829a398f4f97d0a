package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emailauth/emailauth/internal/core/domain"
)

const groupsCollection = "groups"

type GroupRepository struct {
	coll *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) *GroupRepository {
	return &GroupRepository{coll: db.Collection(groupsCollection)}
}

type mongoGroup struct {
	Name        string   `bson:"name"`
	Permissions []string `bson:"permissions"`
}

// PermissionsForGroups returns the permissions of every named group that exists.
func (r *GroupRepository) PermissionsForGroups(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	var groups []mongoGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}

	var perms []string
	for _, g := range groups {
		perms = append(perms, g.Permissions...)
	}
	return perms, nil
}

// AllPermissions returns every distinct permission granted to any group.
func (r *GroupRepository) AllPermissions(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values, err := r.coll.Distinct(ctx, "permissions", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct permissions: %w", err)
	}
	perms := make([]string, 0, len(values))
	for _, v := range values {
		if p, ok := v.(string); ok {
			perms = append(perms, p)
		}
	}
	sort.Strings(perms)
	return perms, nil
}

func (r *GroupRepository) FindByName(ctx context.Context, name string) (*domain.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mg mongoGroup
	if err := r.coll.FindOne(ctx, bson.M{"name": name}).Decode(&mg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &domain.Group{Name: mg.Name, Permissions: nonNil(mg.Permissions)}, nil
}

// Save creates the group or replaces its permission list.
func (r *GroupRepository) Save(ctx context.Context, group *domain.Group) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"name": group.Name},
		mongoGroup{Name: group.Name, Permissions: nonNil(group.Permissions)},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save group: %w", err)
	}
	return nil
}
