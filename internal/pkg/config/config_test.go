package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMongo, cfg.StorageDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "emailauth", cfg.Mongo.Database)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "webmaster@localhost", cfg.Mail.DefaultFrom)
	assert.Equal(t, 4, cfg.Mail.Workers)
	assert.Zero(t, cfg.Mail.Throttle)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.SecretGenerated)
	assert.Len(t, cfg.JWTSecret, 64)
}

func TestLoadFrom_GeneratedSecretsDiffer(t *testing.T) {
	a, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	b, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.NotEqual(t, a.JWTSecret, b.JWTSecret)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":            "production",
		"JWT_SECRET":     "s3cret",
		"TOKEN_TTL":      "15m",
		"STORAGE_DRIVER": "postgres",
		"POSTGRES_DSN":   "postgres://db/accounts",
		"MAIL_THROTTLE":  "1m",
	}))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://db/accounts", cfg.Postgres.DSN)
	assert.Equal(t, time.Minute, cfg.Mail.Throttle)
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.SecretGenerated)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":         {"STORAGE_DRIVER": "sqlite"},
		"missing secret in prod": {"ENV": "production"},
		"non-positive ttl":       {"TOKEN_TTL": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
