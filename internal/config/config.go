// Package config builds the tool's configuration once at startup. Precedence
// is explicit option > environment variable > built-in default; nothing reads
// the environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kebairia/mongocli/internal/webhook"
)

// ErrLoadConfig indicates a failure to read or decode the configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// envPrefix namespaces the recognized environment variables, e.g.
// MONGOCLI_WEBHOOK_URL, MONGOCLI_MAX_FILE_MB, MONGOCLI_VAULT_ADDRESS.
const envPrefix = "MONGOCLI"

// Config is the full configuration surface of the tool.
type Config struct {
	WebhookURL               string        `mapstructure:"webhook_url"`
	MongoURI                 string        `mapstructure:"mongo_uri"`
	DBName                   string        `mapstructure:"db_name"`
	IncludeSystemDBs         bool          `mapstructure:"include_system_dbs"`
	IncludeSystemCollections bool          `mapstructure:"include_system_collections"`
	MaxFileMB                int           `mapstructure:"max_file_mb"`
	IntervalHours            int           `mapstructure:"interval_hours"`
	OutDir                   string        `mapstructure:"out_dir"`
	DumpTimeout              time.Duration `mapstructure:"dump_timeout"`

	Vault VaultConfig `mapstructure:",squash"`
}

// VaultConfig holds the optional Vault secret source settings. Secrets are
// only consulted when SecretPath is non-empty.
type VaultConfig struct {
	Address     string `mapstructure:"vault_address"`
	SecretPath  string `mapstructure:"vault_secret_path"`
	RoleID      string `mapstructure:"vault_role_id"`
	ApproleName string `mapstructure:"vault_approle_name"`
}

// Option overrides a single setting after environment loading, typically from
// a CLI flag. Options always win over environment values.
type Option func(*Config)

func WithWebhookURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.WebhookURL = url
		}
	}
}

func WithMongoURI(uri string) Option {
	return func(c *Config) {
		if uri != "" {
			c.MongoURI = uri
		}
	}
}

func WithDBName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.DBName = name
		}
	}
}

func WithOutDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.OutDir = dir
		}
	}
}

func WithMaxFileMB(mb int) Option {
	return func(c *Config) {
		c.MaxFileMB = mb
	}
}

func WithIntervalHours(hours int) Option {
	return func(c *Config) {
		c.IntervalHours = hours
	}
}

func WithIncludeSystemDBs(include bool) Option {
	return func(c *Config) {
		c.IncludeSystemDBs = include
	}
}

func WithIncludeSystemCollections(include bool) Option {
	return func(c *Config) {
		c.IncludeSystemCollections = include
	}
}

// Load reads the environment, applies defaults and opts, and returns the
// resulting configuration. Validation is a separate step so callers can merge
// in secret-sourced values first.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registering defaults also registers the keys AutomaticEnv resolves.
	v.SetDefault("webhook_url", "")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("db_name", "")
	v.SetDefault("include_system_dbs", false)
	v.SetDefault("include_system_collections", false)
	v.SetDefault("max_file_mb", 8)
	v.SetDefault("interval_hours", 4)
	v.SetDefault("out_dir", "./mongodb-cli")
	v.SetDefault("dump_timeout", 30*time.Minute)
	v.SetDefault("vault_address", "")
	v.SetDefault("vault_secret_path", "")
	v.SetDefault("vault_role_id", "")
	v.SetDefault("vault_approle_name", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrLoadConfig, err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg, nil
}

// Validate fails fast on settings that would otherwise surface mid-pipeline.
func (c *Config) Validate() error {
	if err := webhook.ValidateURL(c.WebhookURL); err != nil {
		return fmt.Errorf("%w: %v", ErrValidateConfig, err)
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("%w: max_file_mb must be positive, got %d", ErrValidateConfig, c.MaxFileMB)
	}
	if c.IntervalHours <= 0 {
		return fmt.Errorf("%w: interval_hours must be positive, got %d", ErrValidateConfig, c.IntervalHours)
	}
	if c.MongoURI == "" {
		return fmt.Errorf("%w: mongo_uri must not be empty", ErrValidateConfig)
	}
	return nil
}

// MaxFileBytes converts the configured per-file ceiling to bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) * 1024 * 1024
}

// Scope names what the run targets, for summaries and report text.
func (c *Config) Scope() string {
	if c.DBName != "" {
		return "db:" + c.DBName
	}
	return "all-databases"
}
