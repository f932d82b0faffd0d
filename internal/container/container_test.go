package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "db", "pr.db")
	cfg.Storage.QuotationDir = filepath.Join(dir, "quotations")
	cfg.Storage.ExportDir = filepath.Join(dir, "exports")
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bootstrap.AdminPassword = "changeme123"
	cfg.Bootstrap.SeedDefaultBudgets = true

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start is rejected")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)

	admin, err := c.Services().Users.Authenticate(ctx, "admin", "changeme123")
	require.NoError(t, err)
	assert.Equal(t, "superadmin", string(admin.Role))

	budgets, err := c.Services().Budgets.List(ctx, "IT", "2026")
	require.NoError(t, err)
	assert.Len(t, budgets, 2)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx), "closed container cannot restart")
}

func TestContainer_RestartKeepsBootstrapIdempotent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bootstrap.AdminPassword = "changeme123"
	cfg.Bootstrap.SeedDefaultBudgets = true
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		c, err := NewContainer(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, c.Start(ctx))

		users, err := c.Repositories().User.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
		require.NoError(t, c.Close())
	}
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("pr_id", int64(7), 42, "skipped", "error", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "pr_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
