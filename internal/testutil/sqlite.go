// Package testutil provides a migrated SQLite store for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewDB opens a file-backed database in t.TempDir with all migrations
// applied. A file is used rather than :memory: so every pooled connection
// sees the same store.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	cfg := database.Config{
		Path:        filepath.Join(t.TempDir(), "pr-workflow.db"),
		BusyTimeout: 5 * time.Second,
	}
	db, err := database.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).Run()
	require.NoError(t, err)
	return db
}

// InsertUser creates an active account directly in the users table.
func InsertUser(t testing.TB, db *database.DB, username string, role entity.Role, department string) int64 {
	t.Helper()

	res, err := db.ExecContext(context.Background(),
		`INSERT INTO users (username, password_hash, full_name, email, department, role, active, created_at)
		VALUES (?, 'x', ?, '', ?, ?, 1, ?)`,
		username, username, department, role, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// InsertBudget creates a budget line with the given allocation in whole units.
func InsertBudget(t testing.TB, db *database.DB, department, category, fiscalYear string, allocated int64) {
	t.Helper()

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO budget_categories (department, category, fiscal_year, allocated_cents, spent_cents)
		VALUES (?, ?, ?, ?, 0)`,
		department, category, fiscalYear, allocated*100)
	require.NoError(t, err)
}
