package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at an explicit config file.
const EnvConfigPath = "DRONEWATCH_CONFIG"

var defaultSearchPaths = []string{".config.yaml", "config.yaml", "data/config.yaml"}

// Loader reads YAML configuration layered over DefaultConfig and environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that searches the default config locations.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file instead of searching for one.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides environment lookups (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load resolves the config file, applies env overrides and validates the result.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := DefaultConfig()
	path := l.resolvePath()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else {
		path = "defaults"
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if p, ok := l.lookupEnv(EnvConfigPath); ok && p != "" {
		return p
	}
	for _, candidate := range defaultSearchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := l.lookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DRONEWATCH_LOG_LEVEL", &cfg.Log.Level)
	str("DRONEWATCH_BACKEND_TYPE", &cfg.Backend.Type)
	str("DRONEWATCH_BACKEND_URL", &cfg.Backend.BaseURL)
	str("DRONEWATCH_BACKEND_MODEL", &cfg.Backend.ModelName)
	str("OPENAI_API_KEY", &cfg.Backend.APIKey)
	str("DRONEWATCH_BACKEND_API_KEY", &cfg.Backend.APIKey)
	str("DRONEWATCH_CAMERA_TYPE", &cfg.Camera.Type)
	str("DRONEWATCH_CAMERA_SNAPSHOT_URL", &cfg.Camera.SnapshotURL)
	str("DRONEWATCH_CAMERA_DIRECTORY", &cfg.Camera.Directory)
	str("DRONEWATCH_EVENTS_DRIVER", &cfg.Events.Driver)
	str("DRONEWATCH_REDIS_ADDR", &cfg.Events.Redis.Addr)
	str("DRONEWATCH_AUTH_SECRET", &cfg.Server.Auth.Secret)

	if err := integer("DRONEWATCH_HTTP_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := integer("DRONEWATCH_SENSITIVITY", &cfg.Sampler.Sensitivity); err != nil {
		return err
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Sampler.Sensitivity < 1 || cfg.Sampler.Sensitivity > 10 {
		return fmt.Errorf("sampler sensitivity must be within 1..10, got %d", cfg.Sampler.Sensitivity)
	}
	if cfg.Events.Capacity <= 0 {
		return fmt.Errorf("events capacity must be positive, got %d", cfg.Events.Capacity)
	}
	switch strings.ToLower(cfg.Backend.Type) {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported backend type: %s", cfg.Backend.Type)
	}
	switch strings.ToLower(cfg.Camera.Type) {
	case "snapshot", "directory":
	default:
		return fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
	if cfg.Server.Auth.Enabled && cfg.Server.Auth.Secret == "" {
		return fmt.Errorf("auth enabled but no secret configured")
	}
	return nil
}
