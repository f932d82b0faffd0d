// Package container provides dependency injection and lifecycle management
// for the purchase-requisition service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Approval routing configuration
	Workflow WorkflowConfig

	// Quotation storage and PO export configuration
	Storage StorageConfig

	// First-start seeding
	Bootstrap BootstrapConfig

	// Password hashing
	Auth AuthConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a lock before reporting busy
	BusyTimeout time.Duration

	// MaxRetries bounds transaction re-runs on lock contention
	MaxRetries int

	// RetryInitialInterval is the first backoff delay, doubled per retry
	RetryInitialInterval time.Duration
}

// WorkflowConfig holds approval routing settings.
type WorkflowConfig struct {
	Thresholds domainwf.Thresholds

	// ExceptionRoles may decide budget exceptions; empty means the defaults
	ExceptionRoles []entity.Role
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// QuotationDir is the base directory for uploaded quotations
	QuotationDir string

	// ExportDir keeps a copy of every exported PO; empty disables it
	ExportDir string

	// CompanyName printed on exported POs
	CompanyName string

	// RequireQuotation blocks PO creation for PRs without a quotation
	RequireQuotation bool
}

// BootstrapConfig holds first-start seeding settings.
type BootstrapConfig struct {
	AdminUsername string

	// AdminPassword; no account is created when empty
	AdminPassword string

	// SeedDefaultBudgets inserts the default categories for the current year
	SeedDefaultBudgets bool
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	// BcryptCost; zero means bcrypt.DefaultCost
	BcryptCost int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                 "data/pr_system.db",
			MaxOpenConns:         10,
			MaxIdleConns:         5,
			ConnMaxLifetime:      5 * time.Minute,
			BusyTimeout:          5 * time.Second,
			MaxRetries:           5,
			RetryInitialInterval: 100 * time.Millisecond,
		},
		Workflow: WorkflowConfig{
			Thresholds: domainwf.DefaultThresholds(),
		},
		Storage: StorageConfig{
			QuotationDir: "data/quotations",
			ExportDir:    "data/exports",
			CompanyName:  "Company Sdn Bhd",
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Workflow.Thresholds.Validate(); err != nil {
		return fmt.Errorf("workflow thresholds: %w", err)
	}
	if c.Storage.QuotationDir == "" {
		return fmt.Errorf("storage.quotation_dir is required")
	}
	return nil
}
