// Package config handles loading and managing quail configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the quail configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Poll   PollConfig   `toml:"poll"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// ServerConfig holds the backend connection settings.
type ServerConfig struct {
	URL            string `toml:"url"`             // Chat backend base URL
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per-request timeout
}

// DataConfig holds local storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// PollConfig holds the polling intervals, in seconds. Short intervals keep
// the view fresh; the backend offers no push channel.
type PollConfig struct {
	ActiveSeconds    int `toml:"active_seconds"`    // Open conversation message refresh
	UnreadSeconds    int `toml:"unread_seconds"`    // Unread scan over closed conversations
	RosterSeconds    int `toml:"roster_seconds"`    // Friends and groups refresh
	DiscoverySeconds int `toml:"discovery_seconds"` // New-chat discovery
}

// Intervals are the polling intervals as durations.
type Intervals struct {
	Active    time.Duration
	Unread    time.Duration
	Roster    time.Duration
	Discovery time.Duration
}

// DefaultHome returns the default quail home directory.
// Respects the QUAIL_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("QUAIL_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quail"
	}
	return filepath.Join(home, ".quail")
}

// Load reads the configuration from the specified file. If path is empty,
// the default location (~/.quail/config.toml) is used. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Server: ServerConfig{
			URL:            "http://localhost:8000/api/chat",
			TimeoutSeconds: 15,
		},
		Data: DataConfig{
			DataDir: homeDir,
		},
		Poll: PollConfig{
			ActiveSeconds:    2,
			UnreadSeconds:    3,
			RosterSeconds:    5,
			DiscoverySeconds: 3,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	return cfg, nil
}

// EnsureHomeDir creates the data directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.Data.DataDir, 0755)
}

// StatePath returns the path to the client state database (read positions,
// persisted UI state).
func (c *Config) StatePath() string {
	return filepath.Join(c.Data.DataDir, "state.db")
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	if c.Server.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// Intervals returns the polling intervals, substituting defaults for
// missing or non-positive values.
func (c *Config) Intervals() Intervals {
	return Intervals{
		Active:    secondsOr(c.Poll.ActiveSeconds, 2*time.Second),
		Unread:    secondsOr(c.Poll.UnreadSeconds, 3*time.Second),
		Roster:    secondsOr(c.Poll.RosterSeconds, 5*time.Second),
		Discovery: secondsOr(c.Poll.DiscoverySeconds, 3*time.Second),
	}
}

func secondsOr(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
