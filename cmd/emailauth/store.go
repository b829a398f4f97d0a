package main

import (
	"context"
	"fmt"

	"github.com/emailauth/emailauth/internal/api/handler"
	"github.com/emailauth/emailauth/internal/core/ports"
	mongodb "github.com/emailauth/emailauth/internal/infrastructure/db/mongo"
	"github.com/emailauth/emailauth/internal/infrastructure/db/postgres"
	"github.com/emailauth/emailauth/internal/pkg/config"
)

// store bundles the repositories of the configured storage driver.
type store struct {
	name   string
	users  ports.UserRepository
	groups ports.GroupRepository
	ping   handler.PingFunc
	close  func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &store{
			name:   config.StoragePostgres,
			users:  postgres.NewUserRepository(db),
			groups: postgres.NewGroupRepository(db),
			ping:   db.PingContext,
			close:  func(context.Context) error { return db.Close() },
		}, nil

	case config.StorageMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			name:   config.StorageMongo,
			users:  mongodb.NewUserRepository(db),
			groups: mongodb.NewGroupRepository(db),
			ping:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:  client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}
