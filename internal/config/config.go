package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for cmsbackup.
type Config struct {
	BaseDir     string              `toml:"base_dir"`
	LogDir      string              `toml:"log_dir"`
	MediaRoot   string              `toml:"media_root"`
	Database    DatabaseConfig      `toml:"database"`
	Vault       VaultConfig         `toml:"vault"`
	Media       MediaConfig         `toml:"media"`
	Scheduler   SchedulerConfig     `toml:"scheduler"`
	Collections map[string][]string `toml:"collections,omitempty"` // backup kind -> collection ids, replaces the built-in list
}

// DatabaseConfig represents configuration for the catalog and CMS database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for the snapshot payload store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "filesystem", "memory" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`   // for S3-compatible stores
	S3AccessKey string `toml:"s3_access_key,omitempty"` // empty uses the default credential chain
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`
}

// MediaConfig holds media-archive settings.
type MediaConfig struct {
	Ignore []string `toml:"ignore"`
}

// SchedulerConfig holds settings for the long-running scheduler.
type SchedulerConfig struct {
	Interval    string `toml:"interval"`               // Go duration, e.g. "5m"
	MetricsAddr string `toml:"metrics_addr,omitempty"` // empty disables the metrics server
}

// DefaultSchedulerInterval is used when [scheduler] interval is empty.
const DefaultSchedulerInterval = 5 * time.Minute

// TickInterval parses Interval, falling back to DefaultSchedulerInterval.
func (s SchedulerConfig) TickInterval() (time.Duration, error) {
	if s.Interval == "" {
		return DefaultSchedulerInterval, nil
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduler interval %q: %w", s.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("scheduler interval must be positive, got %s", d)
	}
	return d, nil
}

// NewConfig creates a Config rooted at baseDir with local defaults:
// a SQLite database and a filesystem vault under baseDir.
func NewConfig(baseDir, mediaRoot string) *Config {
	return &Config{
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		MediaRoot: mediaRoot,
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Scheduler: SchedulerConfig{
			Interval: DefaultSchedulerInterval.String(),
		},
	}
}

// Validate checks that every field required by the selected backends is set.
func (c *Config) Validate() error {
	var errs []error

	if c.MediaRoot == "" {
		errs = append(errs, errors.New("media_root is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database.data_dir is required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database type: %q", c.Database.Type))
	}

	switch c.Vault.Type {
	case "filesystem":
		if c.Vault.FSVaultRoot == "" {
			errs = append(errs, errors.New("vault.fs_vault_root is required for filesystem vault"))
		}
	case "s3":
		if c.Vault.S3Bucket == "" {
			errs = append(errs, errors.New("vault.s3_bucket is required for s3 vault"))
		}
		if (c.Vault.S3AccessKey == "") != (c.Vault.S3SecretKey == "") {
			errs = append(errs, errors.New("vault.s3_access_key and vault.s3_secret_key must be set together"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown vault type: %q", c.Vault.Type))
	}

	if _, err := c.Scheduler.TickInterval(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it to path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
