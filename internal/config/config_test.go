package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRW_SECRET_KEY", "0123456789abcdef-secret")
	t.Setenv("PRW_DB_PATH", "/var/lib/prw/pr.db")
	t.Setenv("PRW_COOKIE_SECURE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/var/lib/prw/pr.db", cfg.Database.Path)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "pr_session", cfg.Session.CookieName)
	assert.Equal(t, 5, cfg.Database.MaxRetries)

	th, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, "10000", th.Level1.String())
	assert.Equal(t, "50000", th.Level2.String())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRW_SECRET_KEY", "0123456789abcdef-secret")
	t.Setenv("PRW_ADMIN_PASSWORD", "bootstrap-pw")

	path := writeConfig(t, `
server:
  port: 9090
approval:
  level1: "5000.50"
  level2: "20000"
  level3: "80000"
  exception_roles: [approver4, superadmin]
procurement:
  require_quotation: true
  quotation_dir: /srv/quotes
budget:
  seed_defaults: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Procurement.RequireQuotation)
	assert.Equal(t, "bootstrap-pw", cfg.Bootstrap.AdminPassword)

	cc, err := cfg.ToContainerConfig()
	require.NoError(t, err)
	assert.Equal(t, "5000.5", cc.Workflow.Thresholds.Level1.String())
	assert.Equal(t, []entity.Role{entity.RoleApprover4, entity.RoleSuperAdmin}, cc.Workflow.ExceptionRoles)
	assert.Equal(t, "/srv/quotes", cc.Storage.QuotationDir)
	assert.True(t, cc.Storage.RequireQuotation)
	assert.True(t, cc.Bootstrap.SeedDefaultBudgets)
	assert.Equal(t, "admin", cc.Bootstrap.AdminUsername)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PRW_SECRET_KEY=from-dotenv-0123456789\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PRW_SECRET_KEY") })

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv-0123456789", cfg.Session.SecretKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:      ServerConfig{Port: 8080},
			Database:    DatabaseConfig{Path: "pr.db"},
			Session:     SessionConfig{SecretKey: "0123456789abcdef", IdleTimeout: time.Minute},
			Approval:    ApprovalConfig{Level1: "10000", Level2: "50000", Level3: "100000"},
			Procurement: ProcurementConfig{QuotationDir: "q"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"db path", func(c *Config) { c.Database.Path = "" }},
		{"short secret", func(c *Config) { c.Session.SecretKey = "short" }},
		{"idle timeout", func(c *Config) { c.Session.IdleTimeout = 0 }},
		{"bad amount", func(c *Config) { c.Approval.Level1 = "ten" }},
		{"unordered thresholds", func(c *Config) { c.Approval.Level1 = "60000" }},
		{"unknown role", func(c *Config) { c.Approval.ExceptionRoles = []string{"janitor"} }},
		{"quotation dir", func(c *Config) { c.Procurement.QuotationDir = "" }},
		{"admin without username", func(c *Config) { c.Bootstrap.AdminPassword = "pw" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
