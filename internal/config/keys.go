package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "crafty-url").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Default is shown when the key is not set.
	Default string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set parses and applies a value for this key to the given Config
	// (in memory only; the caller is responsible for calling Save).
	Set func(cfg *Config, value string) error
}

// EnvVar is the environment variable overriding this key.
func (k KeySpec) EnvVar() string {
	return "MCFLEET_" + strings.ToUpper(strings.ReplaceAll(k.Name, "-", "_"))
}

func stringKey(name, desc, def string, field func(*Config) *string, validate func(string) error) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Default:     def,
		Get:         func(cfg *Config) string { return *field(cfg) },
		Set: func(cfg *Config, v string) error {
			v = strings.TrimSpace(v)
			if validate != nil {
				if err := validate(v); err != nil {
					return err
				}
			}
			*field(cfg) = v
			return nil
		},
	}
}

func durationKey(name, desc string, def time.Duration, field func(*Config) *string) KeySpec {
	return stringKey(name, desc, def.String(), field, validateDuration)
}

func oneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, allowed := range values {
			if strings.EqualFold(v, allowed) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(values, ", "), v)
	}
}

func validateTimezone(v string) error {
	_, err := time.LoadLocation(v)
	return err
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	stringKey("crafty-url", "Base URL of the Crafty Controller panel", "",
		func(c *Config) *string { return &c.CraftyURL }, validateURL),
	{
		Name:        "crafty-insecure-tls",
		Description: "Skip TLS verification for the panel (self-signed certs)",
		Default:     "false",
		Get:         func(cfg *Config) string { return strconv.FormatBool(cfg.CraftyInsecureTLS) },
		Set: func(cfg *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("must be true or false, got %q", v)
			}
			cfg.CraftyInsecureTLS = b
			return nil
		},
	},
	stringKey("crafty-timezone", "IANA time zone of panel timestamps", "UTC",
		func(c *Config) *string { return &c.CraftyTimezone }, validateTimezone),
	stringKey("host-provider", "Compute provider of the fleet host (gce, hetzner)", DefaultHostProvider,
		func(c *Config) *string { return &c.HostProvider }, oneOf("gce", "hetzner")),
	stringKey("gce-project", "GCE project id of the host instance", "",
		func(c *Config) *string { return &c.GCEProject }, nil),
	stringKey("gce-zone", "GCE zone of the host instance", "",
		func(c *Config) *string { return &c.GCEZone }, nil),
	stringKey("gce-instance", "GCE instance name of the host", "",
		func(c *Config) *string { return &c.GCEInstance }, nil),
	stringKey("gce-credentials-file", "Service account JSON (default: application default credentials)", "",
		func(c *Config) *string { return &c.GCECredentialsFile }, nil),
	{
		Name:        "hetzner-server-id",
		Description: "Hetzner Cloud server id of the host",
		Get: func(cfg *Config) string {
			if cfg.HetznerServerID == 0 {
				return ""
			}
			return strconv.FormatInt(cfg.HetznerServerID, 10)
		},
		Set: func(cfg *Config, v string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("must be a positive integer, got %q", v)
			}
			cfg.HetznerServerID = id
			return nil
		},
	},
	durationKey("idle-threshold", "Idle time before a server is stopped and the host may shut down", DefaultIdleThreshold,
		func(c *Config) *string { return &c.IdleThreshold }),
	durationKey("refresh-interval", "Interval between fleet and host refreshes", DefaultRefreshInterval,
		func(c *Config) *string { return &c.RefreshInterval }),
	durationKey("start-timeout", "How long a start request waits for the server", DefaultStartTimeout,
		func(c *Config) *string { return &c.StartTimeout }),
	durationKey("stop-timeout", "How long a stop request waits for the server", DefaultStopTimeout,
		func(c *Config) *string { return &c.StopTimeout }),
	stringKey("listen-addr", "Address the daemon API listens on", DefaultListenAddr,
		func(c *Config) *string { return &c.ListenAddr }, nil),
	stringKey("api-url", "Daemon API used by CLI commands", DefaultAPIURL,
		func(c *Config) *string { return &c.APIURL }, validateURL),
	stringKey("log-level", "Daemon log level (debug, info, warn, error)", DefaultLogLevel,
		func(c *Config) *string { return &c.LogLevel }, oneOf("trace", "debug", "info", "warn", "warning", "error")),
	stringKey("log-format", "Daemon log format (json, text)", DefaultLogFormat,
		func(c *Config) *string { return &c.LogFormat }, oneOf("json", "text")),
	stringKey("database-path", "SQLite file for transition history", "",
		func(c *Config) *string { return &c.DatabasePath }, nil),
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
