package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Downloads DownloadsConfig `toml:"downloads"`
	Player    PlayerConfig    `toml:"player"`
	Database  DatabaseConfig  `toml:"database"`
}

// APIConfig describes the catalog API server.
type APIConfig struct {
	BaseURL           string  `toml:"base_url" env:"MDX_API_BASE_URL"`
	Quality           string  `toml:"quality" env:"MDX_API_QUALITY"`
	PageSize          int     `toml:"page_size" env:"MDX_API_PAGE_SIZE"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"MDX_API_RPS"`
	TimeoutSeconds    int     `toml:"timeout_seconds" env:"MDX_API_TIMEOUT"`
}

// SessionConfig locates the persisted login session.
type SessionConfig struct {
	Path string `toml:"path" env:"MDX_SESSION_PATH"`
}

// DownloadsConfig controls where and how tracks are saved.
type DownloadsConfig struct {
	Dir     string `toml:"dir" env:"MDX_DOWNLOAD_DIR"`
	GraceMS int    `toml:"grace_ms" env:"MDX_DOWNLOAD_GRACE_MS"`
	Tag     bool   `toml:"tag" env:"MDX_DOWNLOAD_TAG"`
}

// PlayerConfig controls the mpv-backed media element.
type PlayerConfig struct {
	MPVPath    string  `toml:"mpv_path" env:"MDX_MPV_PATH"`
	SocketPath string  `toml:"socket_path" env:"MDX_MPV_SOCKET"`
	Volume     float64 `toml:"volume" env:"MDX_PLAYER_VOLUME"`
	EndGraceMS int     `toml:"end_grace_ms" env:"MDX_PLAYER_END_GRACE_MS"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"MDX_DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Grace returns how long a finished download stays visible.
func (c DownloadsConfig) Grace() time.Duration {
	return time.Duration(c.GraceMS) * time.Millisecond
}

// EndGrace returns how long the finished frame stays visible after the last track ends.
func (c PlayerConfig) EndGrace() time.Duration {
	return time.Duration(c.EndGraceMS) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load resolves the effective configuration: .env file, then the TOML file at path (if present), then MDX_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrInvalidConfig, err)
	}

	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overwrites config values with any MDX_* environment variables that are set.
func ApplyEnv(config *Config) error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the values the rest of the application relies on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("%w: api.page_size must be positive", ErrInvalidConfig)
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("%w: player.volume must be within [0, 1]", ErrInvalidConfig)
	}
	if c.Downloads.Dir == "" {
		return fmt.Errorf("%w: downloads.dir is required", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
