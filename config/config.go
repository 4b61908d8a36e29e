// Package config loads daemon configuration with three layers: struct
// defaults, an optional YAML file, and HARBORD_* environment variables,
// each overriding the last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no --config flag is given.
var DefaultConfigPaths = []string{
	"harbord.yaml",
	"harbord.yml",
	"/etc/harbord/config.yaml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "HARBORD_CONFIG"

// envPrefix namespaces the environment layer. A double underscore
// nests: HARBORD_LOG__LEVEL maps to log.level, while single underscores
// stay part of the key (HARBORD_CHECKPOINT_URL maps to checkpoint_url).
const envPrefix = "HARBORD_"

// Config is the daemon configuration.
type Config struct {
	// DataDir is the root under which each worker gets its own
	// subdirectory. Defaults to <user config dir>/harbord.
	DataDir string `koanf:"data_dir"`

	// CheckpointURL is the bootstrap snapshot to download before the
	// light client starts.
	CheckpointURL string `koanf:"checkpoint_url"`

	// CaptureLogs pipes worker output through the log multiplexer
	// instead of inheriting the daemon's streams.
	CaptureLogs bool `koanf:"capture_logs"`

	// HeartbeatInterval between worker liveness pings.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// AttachTimeout bounds the wait for a spawned worker to connect back.
	AttachTimeout time.Duration `koanf:"attach_timeout"`

	Log         LogConfig    `koanf:"log"`
	LightClient WorkerConfig `koanf:"lightclient"`
	Indexer     WorkerConfig `koanf:"indexer"`
}

// LogConfig controls daemon logging.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// WorkerConfig carries per-role settings.
type WorkerConfig struct {
	// Args are extra arguments appended to the role's command line.
	Args []string `koanf:"args"`
}

func defaultConfig() *Config {
	return &Config{
		CheckpointURL:     "https://checkpoints.harbord.dev/protocol.sdb",
		CaptureLogs:       false,
		HeartbeatInterval: time.Second,
		AttachTimeout:     10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. path names an explicit config file;
// empty selects the HARBORD_CONFIG variable, then DefaultConfigPaths,
// then defaults only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps HARBORD_LOG__LEVEL to log.level.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) normalize() error {
	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("config: resolve user config dir: %w", err)
		}
		c.DataDir = filepath.Join(base, "harbord")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.AttachTimeout <= 0 {
		return fmt.Errorf("config: attach_timeout must be positive, got %s", c.AttachTimeout)
	}
	if c.CheckpointURL == "" {
		return fmt.Errorf("config: checkpoint_url must not be empty")
	}
	return nil
}

// WorkerDataDir returns the per-role data directory under DataDir.
func (c *Config) WorkerDataDir(role string) string {
	return filepath.Join(c.DataDir, role)
}
