package capture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ainavigator/continuum/sanitize"
)

// Config configures the capture service.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// SweepInterval sets how often zero-ref resources are collected.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// QueueSize bounds the async capture queue.
	QueueSize int `yaml:"queue_size"`
	// SnippetLength caps the stored plain-text preview.
	SnippetLength int `yaml:"snippet_length"`
	// Sanitize configures the HTML sanitizer.
	Sanitize sanitize.Config `yaml:"sanitize"`
}

// DefaultConfig returns the local single-user defaults.
func DefaultConfig() Config {
	return Config{
		Listen:        ":8090",
		DBPath:        "db/continuum.db",
		LogLevel:      "info",
		SweepInterval: time.Minute,
		QueueSize:     64,
		SnippetLength: 300,
		Sanitize:      sanitize.DefaultConfig(),
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("load config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configs that cannot run.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: queue_size must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
