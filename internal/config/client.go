package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Environment variables read by repairctl
const (
	EnvClientConfig      = "REPAIRCTL_CONFIG"
	EnvClientAPIURL      = "REPAIRCTL_API_URL"
	EnvClientSessionPath = "REPAIRCTL_SESSION"
	EnvClientTimeout     = "REPAIRCTL_TIMEOUT"
	EnvClientLogLevel    = "REPAIRCTL_LOG_LEVEL"
)

// DefaultClientConfig returns the repairctl settings used when no file,
// environment variable or flag overrides them.
func DefaultClientConfig() *Config {
	sessionPath := "repairctl-session.db"
	if home, err := os.UserHomeDir(); err == nil {
		sessionPath = filepath.Join(home, ".repairctl", "session.db")
	}

	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Client: ClientConfig{
			APIURL:      "http://localhost:5000",
			Timeout:     30 * time.Second,
			SessionPath: sessionPath,
		},
	}
}

// LoadClient layers the optional YAML file and REPAIRCTL_* environment
// over DefaultClientConfig.
func LoadClient(configPath string) (*Config, error) {
	cfg := DefaultClientConfig()

	if configPath != "" {
		fileCfg, err := Load(configPath)
		if err != nil {
			return nil, err
		}
		if fileCfg.Client.APIURL != "" {
			cfg.Client.APIURL = fileCfg.Client.APIURL
		}
		if fileCfg.Client.SessionPath != "" {
			cfg.Client.SessionPath = fileCfg.Client.SessionPath
		}
		cfg.Client.Timeout = fileCfg.Client.Timeout
		if fileCfg.Logging.Level != "" {
			cfg.Logging = fileCfg.Logging
		}
	}

	if v := os.Getenv(EnvClientAPIURL); v != "" {
		cfg.Client.APIURL = v
	}
	if v := os.Getenv(EnvClientSessionPath); v != "" {
		cfg.Client.SessionPath = v
	}
	if v := os.Getenv(EnvClientTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvClientTimeout, err)
		}
		cfg.Client.Timeout = d
	}
	if v := os.Getenv(EnvClientLogLevel); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// ValidateClientConfig checks the settings repairctl depends on
func (c *Config) ValidateClientConfig() error {
	if c.Client.APIURL == "" {
		return fmt.Errorf("client api_url is required")
	}

	u, err := url.Parse(c.Client.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid client api_url: %q", c.Client.APIURL)
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be greater than 0")
	}

	if c.Client.SessionPath == "" {
		return fmt.Errorf("client session_path is required")
	}

	return nil
}
