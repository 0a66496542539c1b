package config

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".variantgen.yaml"

// Config holds all variantgen configuration.
type Config struct {
	// MethodName is the generated accessor for Go enums. Sealed sum types get
	// a package function with the type name spliced in instead
	// (EnumerateVariants on Shape becomes EnumerateShapeVariants).
	MethodName string `yaml:"method_name"`

	// Directive marks a Go type for generation when no -type is given,
	// written as a //<directive> line in the type's doc comment.
	Directive string `yaml:"directive"`

	// OutputSuffix is appended to the lowercased type name (Go) or the
	// source file stem (Rust) to name generated files.
	OutputSuffix string `yaml:"output_suffix"`

	// Workers caps how many targets are processed concurrently.
	Workers int `yaml:"workers"`

	Rust    RustConfig    `yaml:"rust"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// RustConfig configures the Rust frontend.
type RustConfig struct {
	// Derive is the derive name that selects an item.
	Derive string `yaml:"derive"`
	// MethodName is the generated associated function.
	MethodName string `yaml:"method_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MethodName:   "EnumerateVariants",
		Directive:    "variantgen:enumerate",
		OutputSuffix: "_variants",
		Workers:      4,
		Rust: RustConfig{
			Derive:     "VariantEnumerator",
			MethodName: "enumerate_variants",
		},
		Watch:   DefaultWatchConfig(),
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("VARIANTGEN_METHOD_NAME"); name != "" {
		c.MethodName = name
	}
	if n := os.Getenv("VARIANTGEN_WORKERS"); n != "" {
		if workers, err := strconv.Atoi(n); err == nil {
			c.Workers = workers
		}
	}
	if level := os.Getenv("VARIANTGEN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VARIANTGEN_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// Validate checks that the configuration can drive generation.
func (c *Config) Validate() error {
	if !token.IsIdentifier(c.MethodName) {
		return fmt.Errorf("method_name %q is not a Go identifier", c.MethodName)
	}
	if !token.IsIdentifier(c.Rust.MethodName) {
		return fmt.Errorf("rust.method_name %q is not an identifier", c.Rust.MethodName)
	}
	if !token.IsIdentifier(c.Rust.Derive) {
		return fmt.Errorf("rust.derive %q is not an identifier", c.Rust.Derive)
	}
	if c.Directive == "" {
		return fmt.Errorf("directive must not be empty")
	}
	if c.OutputSuffix == "" {
		return fmt.Errorf("output_suffix must not be empty (generated files would overwrite sources)")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
