// Package config loads forge's YAML configuration with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete forge configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Limits   LimitsConfig   `yaml:"limits"`
	Gate     GateConfig     `yaml:"gate"`
	Rate     RateConfig     `yaml:"rate"`
	Generate GenerateConfig `yaml:"generate"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PathsConfig locates templates, run workspaces, the ledger and the anchor
// registry.
type PathsConfig struct {
	TemplatesDir string `yaml:"templatesDir"`
	WorkDir      string `yaml:"workDir"`
	RunsDir      string `yaml:"runsDir"`
	LedgerPath   string `yaml:"ledgerPath"`
	RegistryPath string `yaml:"registryPath"` // empty means the embedded registry
}

// LimitsConfig caps contract resource usage.
type LimitsConfig struct {
	MaxFiles       int `yaml:"maxFiles"`
	MaxFileKB      int `yaml:"maxFileKb"`
	MaxAnchorBytes int `yaml:"maxAnchorBytes"`
}

// GateConfig controls the lint gate.
type GateConfig struct {
	FailClose          bool `yaml:"failClose"`
	AllowCompanionCode bool `yaml:"allowCompanionCode"`
}

// RateConfig bounds run admission.
type RateConfig struct {
	MaxRuns       int `yaml:"maxRuns"`
	WindowSeconds int `yaml:"windowSeconds"`
}

// GenerateConfig configures the contract generator.
type GenerateConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			TemplatesDir: "templates",
			WorkDir:      filepath.Join(".forge", "work"),
			RunsDir:      filepath.Join(".forge", "runs"),
			LedgerPath:   filepath.Join(".forge", "ledger.db"),
		},
		Limits: LimitsConfig{
			MaxFiles:       40,
			MaxFileKB:      256,
			MaxAnchorBytes: 512 * 1024,
		},
		Gate: GateConfig{
			FailClose: true,
		},
		Rate: RateConfig{
			MaxRuns:       30,
			WindowSeconds: 60,
		},
		Generate: GenerateConfig{
			Model: "gemini-2.5-flash",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment variables override both.
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

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("NDJC_TEMPLATES_DIR"); dir != "" {
		c.Paths.TemplatesDir = dir
	}
	if dir := os.Getenv("NDJC_WORK_DIR"); dir != "" {
		c.Paths.WorkDir = dir
	}
	if dir := os.Getenv("NDJC_RUNS_DIR"); dir != "" {
		c.Paths.RunsDir = dir
	}
	if path := os.Getenv("NDJC_LEDGER_PATH"); path != "" {
		c.Paths.LedgerPath = path
	}
	if path := os.Getenv("NDJC_REGISTRY"); path != "" {
		c.Paths.RegistryPath = path
	}

	if v := os.Getenv("NDJC_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.MaxFiles = n
		}
	}
	if v := os.Getenv("NDJC_MAX_FILE_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.MaxFileKB = n
		}
	}
	if v := os.Getenv("NDJC_MAX_ANCHOR_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.MaxAnchorBytes = n
		}
	}

	if v := os.Getenv("NDJC_FAIL_CLOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Gate.FailClose = b
		}
	}
	if v := os.Getenv("NDJC_ALLOW_COMPANION_CODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Gate.AllowCompanionCode = b
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generate.APIKey = key
	}
	if model := os.Getenv("NDJC_MODEL"); model != "" {
		c.Generate.Model = model
	}
	if level := os.Getenv("NDJC_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
