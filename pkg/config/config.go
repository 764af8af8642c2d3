/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend names
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendSnapshot = "snapshot"
	BackendPostgres = "postgres"
	BackendMinio    = "minio"
	BackendDynamoDB = "dynamodb"
)

// Backends lists every supported storage backend.
var Backends = []string{BackendMemory, BackendPebble, BackendSnapshot, BackendPostgres, BackendMinio, BackendDynamoDB}

var (
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"text", "json"}
	compressions = []string{"none", "lz4", "zstd"}
	sqlDrivers   = []string{"pgx", "sqlx"}

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)
)

// Config represents the bookshelf configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Port    int     `yaml:"port"`
	Bind    string  `yaml:"bind"`
	Logging Logging `yaml:"logging"`
	Query   Query   `yaml:"query"`
	HTTP    HTTP    `yaml:"http"`
	Storage Storage `yaml:"storage"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Query bounds list pagination.
type Query struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"` // 0 disables the cap
}

// HTTP contains transport settings
type HTTP struct {
	RateLimitRPS       float64       `yaml:"rate_limit_rps"` // 0 disables rate limiting
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// Storage selects and configures the persistence backend
type Storage struct {
	Backend       string        `yaml:"backend"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	SyncWrites    bool          `yaml:"sync_writes"`
	Pebble        Pebble        `yaml:"pebble"`
	Snapshot      Snapshot      `yaml:"snapshot"`
	Postgres      Postgres      `yaml:"postgres"`
	Minio         Minio         `yaml:"minio"`
	DynamoDB      DynamoDB      `yaml:"dynamodb"`
}

// Pebble configures the embedded key-value backend. An empty path resolves
// to <data_dir>/books.
type Pebble struct {
	Path string `yaml:"path"`
}

// Snapshot configures the single-file backend. An empty path resolves to
// <data_dir>/books.snapshot.
type Snapshot struct {
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

// Postgres configures the SQL backend
type Postgres struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// Minio configures the object storage backend
type Minio struct {
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	Object      string `yaml:"object"`
	UseSSL      bool   `yaml:"use_ssl"`
	Compression string `yaml:"compression"`
}

// DynamoDB configures the DynamoDB backend. Endpoint overrides the AWS
// endpoint, e.g. for DynamoDB Local.
type DynamoDB struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Query: Query{
			DefaultLimit: 10,
			MaxLimit:     0,
		},
		HTTP: HTTP{
			RateLimitRPS:       0,
			RateLimitBurst:     20,
			CORSAllowedOrigins: []string{"*"},
			ShutdownTimeout:    10 * time.Second,
		},
		Storage: Storage{
			Backend:       BackendMemory,
			FlushInterval: 5 * time.Second,
			Snapshot: Snapshot{
				Compression: "zstd",
			},
			Postgres: Postgres{
				Driver: "pgx",
				Table:  "books",
			},
			Minio: Minio{
				Bucket:      "bookshelf",
				Object:      "books.snapshot",
				Compression: "zstd",
			},
			DynamoDB: DynamoDB{
				Table:  "books",
				Region: "us-east-1",
			},
		},
	}
}

// Validate reports every setting that cannot be served.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q must be one of %v", c.Logging.Level, logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format %q must be one of %v", c.Logging.Format, logFormats))
	}
	if c.Query.DefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("query.default_limit must be positive"))
	}
	if c.Query.MaxLimit < 0 {
		errs = append(errs, fmt.Errorf("query.max_limit must not be negative"))
	}
	if c.Query.MaxLimit > 0 && c.Query.DefaultLimit > c.Query.MaxLimit {
		errs = append(errs, fmt.Errorf("query.default_limit %d exceeds query.max_limit %d", c.Query.DefaultLimit, c.Query.MaxLimit))
	}
	if c.HTTP.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit_rps must not be negative"))
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("http.rate_limit_burst must be positive when rate limiting is enabled"))
	}

	errs = append(errs, c.Storage.validate()...)

	return errors.Join(errs...)
}

func (s *Storage) validate() []error {
	var errs []error

	if s.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("storage.flush_interval must not be negative"))
	}

	switch s.Backend {
	case BackendMemory, BackendPebble:
	case BackendSnapshot:
		if !slices.Contains(compressions, s.Snapshot.Compression) {
			errs = append(errs, fmt.Errorf("storage.snapshot.compression %q must be one of %v", s.Snapshot.Compression, compressions))
		}
	case BackendPostgres:
		if !slices.Contains(sqlDrivers, s.Postgres.Driver) {
			errs = append(errs, fmt.Errorf("storage.postgres.driver %q must be one of %v", s.Postgres.Driver, sqlDrivers))
		}
		if s.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn is required"))
		}
		if !tableNamePattern.MatchString(s.Postgres.Table) {
			errs = append(errs, fmt.Errorf("storage.postgres.table %q is not a valid identifier", s.Postgres.Table))
		}
	case BackendMinio:
		if s.Minio.Endpoint == "" || s.Minio.Bucket == "" || s.Minio.Object == "" {
			errs = append(errs, fmt.Errorf("storage.minio requires endpoint, bucket and object"))
		}
		if !slices.Contains(compressions, s.Minio.Compression) {
			errs = append(errs, fmt.Errorf("storage.minio.compression %q must be one of %v", s.Minio.Compression, compressions))
		}
	case BackendDynamoDB:
		if s.DynamoDB.Table == "" {
			errs = append(errs, fmt.Errorf("storage.dynamodb.table is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be one of %v", s.Backend, Backends))
	}

	return errs
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// LoadConfig loads configuration from the specified path. Settings missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600), the file may hold credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration for the given data directory
// and storage backend.
func BootstrapConfig(configPath string, dataDir string, backend string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}
	if backend != "" {
		config.Storage.Backend = backend
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bootstrap config: %w", err)
	}

	// Save the configuration
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	// Use OS-specific default locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./bookshelf.yaml"
	}

	// For Linux/macOS, use ~/.config/bookshelf/config.yaml
	configDir := filepath.Join(homeDir, ".config", "bookshelf")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// PebblePath resolves the pebble directory.
func (c *Config) PebblePath() string {
	if c.Storage.Pebble.Path != "" {
		return c.Storage.Pebble.Path
	}
	return filepath.Join(c.DataDir, "books")
}

// SnapshotPath resolves the snapshot file.
func (c *Config) SnapshotPath() string {
	if c.Storage.Snapshot.Path != "" {
		return c.Storage.Snapshot.Path
	}
	return filepath.Join(c.DataDir, "books.snapshot")
}
