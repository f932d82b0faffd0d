package config

import (
	"fmt"

	"github.com/garyjia/pr-workflow/internal/container"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// Thresholds parses and validates the approval levels.
func (c *Config) Thresholds() (domainwf.Thresholds, error) {
	var t domainwf.Thresholds
	levels := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"approval.level1", c.Approval.Level1, &t.Level1},
		{"approval.level2", c.Approval.Level2, &t.Level2},
		{"approval.level3", c.Approval.Level3, &t.Level3},
	}
	for _, lvl := range levels {
		amount, err := utils.ParseAmount(lvl.raw)
		if err != nil {
			return t, fmt.Errorf("%s: %w", lvl.key, err)
		}
		*lvl.dst = amount
	}
	return t, t.Validate()
}

// ExceptionRoles parses the roles allowed to decide budget exceptions.
func (c *Config) ExceptionRoles() ([]entity.Role, error) {
	roles := make([]entity.Role, 0, len(c.Approval.ExceptionRoles))
	for _, raw := range c.Approval.ExceptionRoles {
		r := entity.Role(raw)
		if !r.IsValid() {
			return nil, fmt.Errorf("approval.exception_roles: unknown role %q", raw)
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	thresholds, err := c.Thresholds()
	if err != nil {
		return nil, err
	}
	roles, err := c.ExceptionRoles()
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:                 c.Database.Path,
			MaxOpenConns:         c.Database.MaxOpenConns,
			MaxIdleConns:         c.Database.MaxIdleConns,
			ConnMaxLifetime:      c.Database.ConnMaxLifetime,
			BusyTimeout:          c.Database.BusyTimeout,
			MaxRetries:           c.Database.MaxRetries,
			RetryInitialInterval: c.Database.RetryInitialInterval,
		},
		Workflow: container.WorkflowConfig{
			Thresholds:     thresholds,
			ExceptionRoles: roles,
		},
		Storage: container.StorageConfig{
			QuotationDir:     c.Procurement.QuotationDir,
			ExportDir:        c.Procurement.ExportDir,
			CompanyName:      c.Procurement.CompanyName,
			RequireQuotation: c.Procurement.RequireQuotation,
		},
		Bootstrap: container.BootstrapConfig{
			AdminUsername:      c.Bootstrap.AdminUsername,
			AdminPassword:      c.Bootstrap.AdminPassword,
			SeedDefaultBudgets: c.Budget.SeedDefaults,
		},
	}, nil
}
