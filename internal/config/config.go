// Package config handles persistent configuration for mcfleet.
//
// Configuration is stored as JSON at ~/.config/mcfleet/config.json (or the
// platform-equivalent path returned by os.UserConfigDir). The daemon layers
// a .env file and MCFLEET_* environment variables on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	appDir   = "mcfleet"
	fileName = "config.json"
	envFile  = ".env"
)

// Defaults applied when a field is empty.
const (
	DefaultIdleThreshold   = time.Hour
	DefaultRefreshInterval = 5 * time.Minute
	DefaultStartTimeout    = 120 * time.Second
	DefaultStopTimeout     = 120 * time.Second
	DefaultListenAddr      = "127.0.0.1:8087"
	DefaultAPIURL          = "http://127.0.0.1:8087"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultHostProvider    = "gce"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Config holds settings that persist across invocations. Durations are
// stored as time.ParseDuration strings.
type Config struct {
	CraftyURL         string `json:"crafty_url,omitempty"`
	CraftyInsecureTLS bool   `json:"crafty_insecure_tls,omitempty"`
	CraftyTimezone    string `json:"crafty_timezone,omitempty"`

	HostProvider       string `json:"host_provider,omitempty"`
	GCEProject         string `json:"gce_project,omitempty"`
	GCEZone            string `json:"gce_zone,omitempty"`
	GCEInstance        string `json:"gce_instance,omitempty"`
	GCECredentialsFile string `json:"gce_credentials_file,omitempty"`
	HetznerServerID    int64  `json:"hetzner_server_id,omitempty"`

	IdleThreshold   string `json:"idle_threshold,omitempty"`
	RefreshInterval string `json:"refresh_interval,omitempty"`
	StartTimeout    string `json:"start_timeout,omitempty"`
	StopTimeout     string `json:"stop_timeout,omitempty"`

	ListenAddr   string `json:"listen_addr,omitempty"`
	APIURL       string `json:"api_url,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`
	LogFormat    string `json:"log_format,omitempty"`
	DatabasePath string `json:"database_path,omitempty"`
}

// Path returns the absolute path to the config file.
// If SetPath has been called, that value is returned instead.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file from disk and returns the parsed Config.
// If the file does not exist, a zero-value Config is returned (not an error).
func Load() (*Config, error) {
	return loadFrom("")
}

// LoadRuntime loads the config file and applies the .env file in the
// working directory, if any, followed by MCFLEET_* environment overrides.
// The result is meant for running the daemon, not for saving.
func LoadRuntime() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read %s: %w", envFile, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides every key whose environment variable is set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, spec := range Keys {
		v, ok := lookup(spec.EnvVar())
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := spec.Set(c, v); err != nil {
			return fmt.Errorf("config: %s: %w", spec.EnvVar(), err)
		}
	}
	return nil
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk, creating the parent directory if needed.
func (c *Config) Save() error {
	return c.saveTo("")
}

func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}

// Validate checks the settings the daemon needs to run.
func (c *Config) Validate() error {
	var errs []error
	if c.CraftyURL == "" {
		errs = append(errs, errors.New("crafty-url is required"))
	} else if err := validateURL(c.CraftyURL); err != nil {
		errs = append(errs, fmt.Errorf("crafty-url: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("crafty-timezone: %w", err))
	}

	switch c.Provider() {
	case "gce":
		if c.GCEProject == "" || c.GCEZone == "" || c.GCEInstance == "" {
			errs = append(errs, errors.New("gce-project, gce-zone and gce-instance are required for the gce host provider"))
		}
	case "hetzner":
		if c.HetznerServerID == 0 {
			errs = append(errs, errors.New("hetzner-server-id is required for the hetzner host provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("host-provider %q is not supported", c.HostProvider))
	}

	for _, d := range []struct{ name, value string }{
		{"idle-threshold", c.IdleThreshold},
		{"refresh-interval", c.RefreshInterval},
		{"start-timeout", c.StartTimeout},
		{"stop-timeout", c.StopTimeout},
	} {
		if err := validateDuration(d.value); d.value != "" && err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// Provider returns the host provider name, defaulting to gce.
func (c *Config) Provider() string {
	return orDefault(strings.ToLower(c.HostProvider), DefaultHostProvider)
}

// Location returns the time zone provider timestamps are written in.
func (c *Config) Location() (*time.Location, error) {
	if c.CraftyTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.CraftyTimezone)
}

func (c *Config) IdleThresholdDuration() time.Duration {
	return durationOr(c.IdleThreshold, DefaultIdleThreshold)
}

func (c *Config) RefreshIntervalDuration() time.Duration {
	return durationOr(c.RefreshInterval, DefaultRefreshInterval)
}

func (c *Config) StartTimeoutDuration() time.Duration {
	return durationOr(c.StartTimeout, DefaultStartTimeout)
}

func (c *Config) StopTimeoutDuration() time.Duration {
	return durationOr(c.StopTimeout, DefaultStopTimeout)
}

func (c *Config) Listen() string { return orDefault(c.ListenAddr, DefaultListenAddr) }

func (c *Config) API() string { return orDefault(c.APIURL, DefaultAPIURL) }

func (c *Config) Level() string { return orDefault(c.LogLevel, DefaultLogLevel) }

func (c *Config) Format() string { return orDefault(c.LogFormat, DefaultLogFormat) }

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func validateDuration(v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateURL(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
