// Package config provides loading and parsing of toolbind.yaml configuration files.
// The configuration names the tool document a worker serves and holds logging,
// Redis and worker settings shared by the CLI commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file searched for by LoadFromDir.
const FileName = "toolbind.yaml"

// Config represents a toolbind.yaml configuration file.
type Config struct {
	// Tool selects the tool document.
	Tool *ToolConfig `yaml:"tool,omitempty"`

	// Log configures the process logger.
	Log *LogConfig `yaml:"log,omitempty"`

	// Redis configures the queue connection.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Worker configuration (for queue-based builds)
	Worker *WorkerConfig `yaml:"worker,omitempty"`

	// dir is the directory the file was loaded from; relative paths resolve against it.
	dir string
}

// ToolConfig names the tool document to load.
type ToolConfig struct {
	// Path to the tool document (YAML or JSON).
	Path string `yaml:"path"`

	// Name is the queue name of the tool. Defaults to the document id.
	Name string `yaml:"name,omitempty"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty"`
}

// RedisConfig configures the Redis connection used by the queue.
type RedisConfig struct {
	// URL is the Redis connection string. Default: redis://localhost:6379
	URL string `yaml:"url,omitempty"`

	// ConnectTimeout as a Go duration string. Default: 5s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`

	// ReadTimeout as a Go duration string. Default: 30s
	ReadTimeout string `yaml:"read_timeout,omitempty"`

	// WriteTimeout as a Go duration string. Default: 5s
	WriteTimeout string `yaml:"write_timeout,omitempty"`
}

// WorkerConfig defines configuration for queue-based worker execution.
type WorkerConfig struct {
	// Concurrency is the number of concurrent worker goroutines.
	// Builds are CPU-bound and short, so the default stays small.
	// Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`

	// ShutdownTimeout is the time to wait for graceful shutdown.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval is the interval between health heartbeats.
	// Format: Go duration string (e.g., "10s")
	// Default: 10s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`
}

// ToolPath returns the tool document path, resolved against the directory
// the configuration was loaded from.
func (c *Config) ToolPath() string {
	if c == nil || c.Tool == nil || c.Tool.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.Tool.Path) || c.dir == "" {
		return c.Tool.Path
	}
	return filepath.Join(c.dir, c.Tool.Path)
}

// ToolName returns the configured tool name, or fallback when unset.
func (c *Config) ToolName(fallback string) string {
	if c == nil || c.Tool == nil || c.Tool.Name == "" {
		return fallback
	}
	return c.Tool.Name
}

// GetLevel parses the log level. Unknown levels fall back to info.
func (l *LogConfig) GetLevel() slog.Level {
	if l == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetFormat returns "json" or "text".
func (l *LogConfig) GetFormat() string {
	if l != nil && strings.EqualFold(l.Format, "json") {
		return "json"
	}
	return "text"
}

// GetURL returns the Redis URL or the default value.
func (r *RedisConfig) GetURL() string {
	if r == nil || r.URL == "" {
		return "redis://localhost:6379"
	}
	return r.URL
}

// GetConnectTimeout returns the connect timeout or the default value.
func (r *RedisConfig) GetConnectTimeout() time.Duration {
	if r == nil {
		return 5 * time.Second
	}
	return parseDuration(r.ConnectTimeout, 5*time.Second)
}

// GetReadTimeout returns the read timeout or the default value.
func (r *RedisConfig) GetReadTimeout() time.Duration {
	if r == nil {
		return 30 * time.Second
	}
	return parseDuration(r.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout or the default value.
func (r *RedisConfig) GetWriteTimeout() time.Duration {
	if r == nil {
		return 5 * time.Second
	}
	return parseDuration(r.WriteTimeout, 5*time.Second)
}

// GetShutdownTimeout parses the shutdown timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetShutdownTimeout() time.Duration {
	if w == nil {
		return 30 * time.Second
	}
	return parseDuration(w.ShutdownTimeout, 30*time.Second)
}

// GetHeartbeatInterval parses the heartbeat interval string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetHeartbeatInterval() time.Duration {
	if w == nil {
		return 10 * time.Second
	}
	return parseDuration(w.HeartbeatInterval, 10*time.Second)
}

// GetConcurrency returns the configured concurrency or the default value.
func (w *WorkerConfig) GetConcurrency() int {
	if w == nil || w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads and parses a toolbind.yaml file from the given path.
// If the path is a directory, it looks for toolbind.yaml or toolbind.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{FileName, "toolbind.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no toolbind.yaml or toolbind.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.dir = filepath.Dir(configPath)

	return &config, nil
}

// LoadFromDir searches for toolbind.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no toolbind.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// LoadFromCurrentDir loads toolbind.yaml from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFromDir(cwd)
}
