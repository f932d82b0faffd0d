package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Session     SessionConfig     `mapstructure:"session"`
	Approval    ApprovalConfig    `mapstructure:"approval"`
	Procurement ProcurementConfig `mapstructure:"procurement"`
	Budget      BudgetConfig      `mapstructure:"budget"`
	Bootstrap   BootstrapConfig   `mapstructure:"bootstrap"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path                 string        `mapstructure:"path"`
	MaxOpenConns         int           `mapstructure:"max_open_conns"`
	MaxIdleConns         int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime      time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout          time.Duration `mapstructure:"busy_timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
}

// SessionConfig holds the signed session cookie settings
type SessionConfig struct {
	SecretKey    string        `mapstructure:"secret_key"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ApprovalConfig holds the routing thresholds. Amounts are decimal strings.
type ApprovalConfig struct {
	Level1         string   `mapstructure:"level1"`
	Level2         string   `mapstructure:"level2"`
	Level3         string   `mapstructure:"level3"`
	ExceptionRoles []string `mapstructure:"exception_roles"`
}

// ProcurementConfig holds PO issuing configuration
type ProcurementConfig struct {
	RequireQuotation bool   `mapstructure:"require_quotation"`
	QuotationDir     string `mapstructure:"quotation_dir"`
	ExportDir        string `mapstructure:"export_dir"`
	CompanyName      string `mapstructure:"company_name"`
}

// BudgetConfig controls default budget seeding at startup
type BudgetConfig struct {
	SeedDefaults bool `mapstructure:"seed_defaults"`
}

// BootstrapConfig names the superadmin created on first start
type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the YAML file and
// environment variables, in increasing order of precedence. A missing
// config file is not an error; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PRW")
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/pr_system.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.max_retries", 5)
	v.SetDefault("database.retry_initial_interval", 100*time.Millisecond)

	// Session defaults
	v.SetDefault("session.cookie_name", "pr_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.idle_timeout", 30*time.Minute)

	// Approval defaults
	v.SetDefault("approval.level1", "10000")
	v.SetDefault("approval.level2", "50000")
	v.SetDefault("approval.level3", "100000")
	v.SetDefault("approval.exception_roles", []string{"approver1", "approver2", "approver3", "approver4", "superadmin"})

	// Procurement defaults
	v.SetDefault("procurement.require_quotation", false)
	v.SetDefault("procurement.quotation_dir", "data/quotations")
	v.SetDefault("procurement.export_dir", "data/exports")
	v.SetDefault("procurement.company_name", "Company Sdn Bhd")

	v.SetDefault("budget.seed_defaults", false)

	v.SetDefault("bootstrap.admin_username", "admin")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the documented environment overrides
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "PRW_DB_PATH")
	_ = v.BindEnv("session.secret_key", "PRW_SECRET_KEY")
	_ = v.BindEnv("session.cookie_secure", "PRW_COOKIE_SECURE")
	_ = v.BindEnv("bootstrap.admin_password", "PRW_ADMIN_PASSWORD")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Session.SecretKey) < 16 {
		return fmt.Errorf("session.secret_key must be at least 16 characters (set PRW_SECRET_KEY)")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	if _, err := c.Thresholds(); err != nil {
		return err
	}
	if _, err := c.ExceptionRoles(); err != nil {
		return err
	}
	if c.Procurement.QuotationDir == "" {
		return fmt.Errorf("procurement.quotation_dir is required")
	}
	if c.Bootstrap.AdminPassword != "" && c.Bootstrap.AdminUsername == "" {
		return fmt.Errorf("bootstrap.admin_username is required with an admin password")
	}
	return nil
}
