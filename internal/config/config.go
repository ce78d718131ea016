package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chunkchain/internal/ngram"
)

// DefaultFileName is the config file looked up in the data directory.
const DefaultFileName = "chunkchain.json"

// Config represents the chunkchain configuration
type Config struct {
	DataDir     string            `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	SecretsFile string            `json:"secrets_file,omitempty" yaml:"secrets_file,omitempty"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Log         LogConfig         `json:"log" yaml:"log"`
	Generation  GenerationConfig  `json:"generation" yaml:"generation"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Maintenance MaintenanceConfig `json:"maintenance" yaml:"maintenance"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path" validate:"required"` // relative paths live under the data directory
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error disabled"`
	JSON  bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

// GenerationConfig contains analysis and generation defaults
type GenerationConfig struct {
	ChunkSizes          ngram.SizeRange `json:"chunk_sizes" yaml:"chunk_sizes"`
	DefaultChunkSize    string          `json:"default_chunk_size" yaml:"default_chunk_size" validate:"required,chunksize"` // "all" or a size
	DefaultOutputLength int             `json:"default_output_length" yaml:"default_output_length" validate:"gt=0"`
	Strategy            string          `json:"strategy" yaml:"strategy" validate:"oneof=word_chunk sentence_chunk"`
	Seed                uint64          `json:"seed,omitempty" yaml:"seed,omitempty"` // 0 seeds from the runtime
	SaveStrategy        string          `json:"save_strategy" yaml:"save_strategy" validate:"oneof=insert_all each"`
}

// CacheConfig contains chunk lookup cache settings
type CacheConfig struct {
	PrefixEntries int `json:"prefix_entries" yaml:"prefix_entries" validate:"gte=0"` // 0 disables the cache
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" validate:"required"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "chunkchain.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Generation: GenerationConfig{
			ChunkSizes:          ngram.DefaultSizeRange(),
			DefaultChunkSize:    "all",
			DefaultOutputLength: 250,
			Strategy:            "word_chunk",
			SaveStrategy:        "insert_all",
		},
		Cache: CacheConfig{
			PrefixEntries: 4096,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8420",
		},
		Maintenance: DefaultMaintenanceConfig(),
	}
}

// isYAML reports whether path names a YAML file
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load loads configuration from a file. JSON is the default format; .yaml
// and .yml files are read as YAML. Fields missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	// Check if file exists, create default if not
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand tilde in path fields before anything else so that
	// secrets_file can reference ~/... paths.
	cfg.expandTilde()

	// Load secrets file (KEY=VALUE) into the environment before
	// expanding ${ENV_VAR} placeholders in the config.
	if err := cfg.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a file in the format its extension names
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandEnvVars expands environment variables in path values
func (c *Config) expandEnvVars() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)
	c.Database.Path = os.ExpandEnv(c.Database.Path)
	c.Server.ListenAddr = os.ExpandEnv(c.Server.ListenAddr)
}

// newValidator returns a struct validator with the chunksize tag registered
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("chunksize", func(fl validator.FieldLevel) bool {
		return IsChunkSize(fl.Field().String())
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsChunkSize reports whether s is "all" or a positive integer.
func IsChunkSize(s string) bool {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	v, err := newValidator()
	if err != nil {
		return fmt.Errorf("failed to build validator: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return err
	}

	if err := c.Generation.ChunkSizes.Validate(); err != nil {
		return fmt.Errorf("invalid chunk_sizes: %w", err)
	}

	if err := c.Maintenance.Validate(); err != nil {
		return fmt.Errorf("invalid maintenance configuration: %w", err)
	}

	return nil
}

// DatabasePath returns the database path, resolving relative paths against
// dataRoot.
func (c *Config) DatabasePath(dataRoot string) string {
	if filepath.IsAbs(c.Database.Path) || dataRoot == "" {
		return c.Database.Path
	}
	return filepath.Join(dataRoot, c.Database.Path)
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued config fields. Called before env-var expansion so that
// both "~/foo" and "${SOME_PATH}" work.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return // can't expand, leave as-is
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.DataDir = expand(c.DataDir)
	c.SecretsFile = expand(c.SecretsFile)
	c.Database.Path = expand(c.Database.Path)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Existing environment variables are NOT overridden (shell/systemd wins).
// If SecretsFile is empty or the file doesn't exist, this is a no-op.
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}
	if _, err := os.Stat(c.SecretsFile); os.IsNotExist(err) {
		return nil // missing file is fine
	}
	if err := godotenv.Load(c.SecretsFile); err != nil {
		return fmt.Errorf("cannot load secrets file %s: %w", c.SecretsFile, err)
	}
	return nil
}
