package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 4000
	DefaultStorePath    = "users.db"
	DefaultUploadsDir   = "uploads"
	DefaultCacheTTL     = time.Hour
	DefaultCacheTimeout = 2 * time.Second
	DefaultPushTimeout  = 10 * time.Second
	DefaultPushSubject  = "mailto:admin@localhost"
)

// Config holds the server configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 4000).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Store configures the SQLite record store.
	Store StoreConfig `yaml:"store"`

	// Cache controls the read-through collection cache.
	Cache CacheConfig `yaml:"cache"`

	// Uploads configures where derived images are written and served from.
	Uploads UploadsConfig `yaml:"uploads"`

	// Push holds Web Push (VAPID) delivery settings.
	Push PushConfig `yaml:"push"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StoreConfig configures the SQLite record store.
type StoreConfig struct {
	// Path is the SQLite database file (default "users.db").
	Path string `yaml:"path"`
}

// CacheConfig controls the read-through collection cache.
type CacheConfig struct {
	// TTL is how long a repopulated collection entry stays fresh (default 1h).
	TTL time.Duration `yaml:"ttl"`

	// Timeout bounds each cache operation issued by the request path.
	// A cache that exceeds it is treated as failed, never as blocking (default 2s).
	Timeout time.Duration `yaml:"timeout"`
}

// UploadsConfig configures the derived-image directory.
type UploadsConfig struct {
	// Dir is the directory image files are written to and served from
	// under /uploads/ (default "uploads").
	Dir string `yaml:"dir"`
}

// PushConfig holds Web Push delivery settings.
type PushConfig struct {
	// VAPIDPublicEnv and VAPIDPrivateEnv name the environment variables
	// holding the VAPID key pair. Push delivery is disabled when either
	// resolves to empty.
	VAPIDPublicEnv  string `yaml:"vapid_public_env"`
	VAPIDPrivateEnv string `yaml:"vapid_private_env"`

	// Subject is the VAPID contact URI sent with each push (default
	// "mailto:admin@localhost").
	Subject string `yaml:"subject"`

	// Timeout bounds the whole fan-out for one mutation (default 10s).
	Timeout time.Duration `yaml:"timeout"`

	// PruneFailed drops a subscriber from the registry when a push
	// endpoint reports it permanently gone (HTTP 404/410). Default false:
	// failed subscribers are kept and retried on the next mutation.
	PruneFailed bool `yaml:"prune_failed"`
}

// VAPIDPublic returns the VAPID public key resolved from the environment.
func (p PushConfig) VAPIDPublic() string {
	if p.VAPIDPublicEnv == "" {
		return ""
	}
	return os.Getenv(p.VAPIDPublicEnv)
}

// VAPIDPrivate returns the VAPID private key resolved from the environment.
func (p PushConfig) VAPIDPrivate() string {
	if p.VAPIDPrivateEnv == "" {
		return ""
	}
	return os.Getenv(p.VAPIDPrivateEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Store: StoreConfig{
				Path: DefaultStorePath,
			},
			Cache: CacheConfig{
				TTL:     DefaultCacheTTL,
				Timeout: DefaultCacheTimeout,
			},
			Uploads: UploadsConfig{
				Dir: DefaultUploadsDir,
			},
			Push: PushConfig{
				Subject: DefaultPushSubject,
				Timeout: DefaultPushTimeout,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Store.Path == "" {
		return fmt.Errorf("server.store.path must not be empty")
	}
	if cfg.Server.Cache.TTL <= 0 {
		return fmt.Errorf("server.cache.ttl must be positive")
	}
	if cfg.Server.Cache.Timeout <= 0 {
		return fmt.Errorf("server.cache.timeout must be positive")
	}
	if cfg.Server.Push.Timeout <= 0 {
		return fmt.Errorf("server.push.timeout must be positive")
	}
	return nil
}
