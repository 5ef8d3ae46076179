package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"OrgVerify/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWithRedisDisabled(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Auth.JWTSecret = "secret"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Redis.Enabled = false
	cfg.Redis.Addr = "127.0.0.1:1" // nothing listens here
	require.NoError(t, config.Validate(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.NoError(t, serve(ctx, cfg, true))
}

func TestServeFailsWhenRedisUnreachable(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Auth.JWTSecret = "secret"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.ErrorContains(t, serve(ctx, cfg, true), "redis")
}
