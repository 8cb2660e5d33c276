package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
}

type ServerConfig struct {
	// URL of the workout server. Empty falls through to the
	// REPSYNC_SERVER_URL env var and then a localhost default.
	URL string `yaml:"url"`
	// DevHostRewrite replaces a loopback host in the resolved URL, for
	// containerized setups where localhost is not the server's machine.
	DevHostRewrite string `yaml:"dev_host_rewrite"`
	// RequestTimeoutSeconds bounds normal API requests. Default 10.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// ProbeTimeoutSeconds bounds the connectivity probe. Default 3,
	// which is also the maximum.
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds"`
}

type StorageConfig struct {
	// Dir holds the local SQLite store. Default ~/.repsync.
	Dir string `yaml:"dir"`
}

type SyncConfig struct {
	// PollIntervalSeconds is the background connectivity watcher's
	// probe period. Default 15.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// DebounceMillis is the write-behind window for local persistence.
	// Default 500.
	DebounceMillis int `yaml:"debounce_millis"`
}

// RequestTimeout returns the request timeout as a duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the probe timeout as a duration.
func (s ServerConfig) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutSeconds) * time.Second
}

// PollInterval returns the watcher period as a duration.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Debounce returns the write-behind window as a duration.
func (s SyncConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMillis) * time.Millisecond
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error: the client must run
// unconfigured, so defaults apply. Env vars use the prefix REPSYNC_:
//
//	REPSYNC_SERVER_URL, REPSYNC_DEV_HOST_REWRITE,
//	REPSYNC_STORAGE_DIR, REPSYNC_POLL_INTERVAL_SECONDS
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	dir := ".repsync"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".repsync")
	}
	return &Config{
		Server: ServerConfig{
			RequestTimeoutSeconds: 10,
			ProbeTimeoutSeconds:   3,
		},
		Storage: StorageConfig{Dir: dir},
		Sync: SyncConfig{
			PollIntervalSeconds: 15,
			DebounceMillis:      500,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPSYNC_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("REPSYNC_DEV_HOST_REWRITE"); v != "" {
		cfg.Server.DevHostRewrite = v
	}
	if v := os.Getenv("REPSYNC_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("REPSYNC_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.PollIntervalSeconds = n
		}
	}
}

func (c *Config) validate() error {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be positive")
	}
	if c.Server.ProbeTimeoutSeconds <= 0 || c.Server.ProbeTimeoutSeconds > 3 {
		return fmt.Errorf("server.probe_timeout_seconds must be between 1 and 3")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Sync.PollIntervalSeconds <= 0 {
		return fmt.Errorf("sync.poll_interval_seconds must be positive")
	}
	if c.Sync.DebounceMillis <= 0 {
		return fmt.Errorf("sync.debounce_millis must be positive")
	}
	return nil
}
