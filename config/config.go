// Package config loads the service configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverMongo    = "mongodb"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SecureCookies reports whether cookies must carry the Secure attribute.
// Only local and development environments may send them over plain HTTP.
func (s ServerConfig) SecureCookies() bool {
	switch strings.ToLower(s.Environment) {
	case "", "dev", "development", "local", "test":
		return false
	}
	return true
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	Path   string `mapstructure:"path"`
}

type AuthConfig struct {
	Secret          string        `mapstructure:"secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	CSRFEnforce     bool          `mapstructure:"csrf_enforce"`
	DefaultPassword string        `mapstructure:"default_password"`
}

// CacheConfig selects the listing cache. Writes delete the cached listings,
// but a listing read while another instance writes may be cached stale for
// up to TTL.
type CacheConfig struct {
	Type     string        `mapstructure:"type"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a cache backend is configured
func (c CacheConfig) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

type LogConfig struct {
	CallerKey  string `mapstructure:"caller_key"`
	TimeKey    string `mapstructure:"time_key"`
	CallerSkip int    `mapstructure:"caller_skip"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// legacyEnv maps keys to the environment names the service was first
// deployed with. They are consulted after the ACCOUNTS_ prefixed names.
var legacyEnv = map[string]string{
	"database.uri":       "MONGO_URI",
	"auth.secret":        "SECRET",
	"server.port":        "PORT",
	"server.environment": "NODE_ENV",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "user-accounts")
	v.SetDefault("database.path", "./accounts.db")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.session_ttl", 72*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.csrf_enforce", true)
	v.SetDefault("auth.default_password", "P@ssword.1")

	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("log.caller_key", "file")
	v.SetDefault("log.time_key", "timestamp")
	v.SetDefault("log.caller_skip", 1)
}

// Load reads configuration from path (YAML). An empty path looks for an
// optional config.yaml in the working directory. Environment variables
// prefixed with ACCOUNTS_ override file values, e.g. ACCOUNTS_AUTH_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "ACCOUNTS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverMongo, DriverPostgres:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for driver %q", c.Database.Driver)
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for driver sqlite3")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
