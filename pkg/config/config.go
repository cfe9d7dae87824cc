// Package config loads autofill.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration, usually loaded from autofill.yaml.
type Config struct {
	// Storage limits and the upload allow-list
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Where and how the two tiers are persisted
	Tiers TierConfig `yaml:"tiers" json:"tiers"`

	// Field matcher behaviour
	Fill FillConfig `yaml:"fill" json:"fill"`

	// Live browser target
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LocalBackend selects the local-tier implementation.
type LocalBackend string

const (
	// BackendFile keeps the local tier in a JSON file
	BackendFile LocalBackend = "file"
	// BackendSQLite keeps the local tier in a SQLite database
	BackendSQLite LocalBackend = "sqlite"
)

// TierConfig locates the synced and local tiers.
type TierConfig struct {
	DataDir      string       `yaml:"data_dir" json:"data_dir"`
	LocalBackend LocalBackend `yaml:"local_backend" json:"local_backend"`
}

// FillScope selects which controls the matcher sees.
type FillScope string

const (
	// ScopeDocument considers every input, textarea and select on the page
	ScopeDocument FillScope = "document"
	// ScopeForms only considers controls inside a form element
	ScopeForms FillScope = "forms"
)

// FillConfig configures the field matcher.
type FillConfig struct {
	// Hooks are the events dispatched on a control after each successful write
	Hooks []string  `yaml:"hooks" json:"hooks"`
	Scope FillScope `yaml:"scope" json:"scope"`
}

// BrowserConfig configures Playwright sessions.
type BrowserConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// DefaultHooks are the notifications frameworks listen for after a value changes.
var DefaultHooks = []string{"change", "input", "blur"}

// DefaultDataDir returns ~/.autofill, or ./.autofill when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autofill"
	}
	return filepath.Join(home, ".autofill")
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Storage: DefaultStorageConfig(),
		Tiers: TierConfig{
			DataDir:      DefaultDataDir(),
			LocalBackend: BackendFile,
		},
		Fill: FillConfig{
			Hooks: append([]string(nil), DefaultHooks...),
			Scope: ScopeDocument,
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Tiers.DataDir == "" {
		return fmt.Errorf("tiers.data_dir is required")
	}

	switch c.Tiers.LocalBackend {
	case "":
		c.Tiers.LocalBackend = BackendFile
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid local_backend: %s (must be 'file' or 'sqlite')", c.Tiers.LocalBackend)
	}

	switch c.Fill.Scope {
	case "":
		c.Fill.Scope = ScopeDocument
	case ScopeDocument, ScopeForms:
	default:
		return fmt.Errorf("invalid fill scope: %s (must be 'document' or 'forms')", c.Fill.Scope)
	}

	for _, hook := range c.Fill.Hooks {
		if hook == "" {
			return fmt.Errorf("fill hooks cannot contain empty event names")
		}
	}

	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser timeout cannot be negative")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	return nil
}

// SyncPath is the synced-tier file inside the data directory.
func (t TierConfig) SyncPath() string {
	return filepath.Join(t.DataDir, "sync.json")
}

// LocalPath is the local-tier file inside the data directory.
func (t TierConfig) LocalPath() string {
	if t.LocalBackend == BackendSQLite {
		return filepath.Join(t.DataDir, "local.db")
	}
	return filepath.Join(t.DataDir, "local.json")
}
