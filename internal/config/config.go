// Package config loads the storyworld configuration.
//
// Values come from a YAML file when one exists and from the environment
// otherwise; a .env file in the working directory is loaded into the
// environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yml"

// Story source kinds.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"development"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Story     StoryConfig     `yaml:"story"`
	Reveal    RevealConfig    `yaml:"reveal"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	OutputPath string `yaml:"output_path" env:"LOG_OUTPUT_PATH"`
}

// StoryConfig selects where stories are loaded from.
type StoryConfig struct {
	Source      string        `yaml:"source" env:"STORY_SOURCE" env-default:"embedded"`
	Path        string        `yaml:"path" env:"STORY_PATH"`
	URL         string        `yaml:"url" env:"STORY_URL"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"STORY_HTTP_TIMEOUT" env-default:"10s"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"STORY_CACHE_TTL" env-default:"10m"`
}

type RevealConfig struct {
	Interval time.Duration `yaml:"interval" env:"REVEAL_INTERVAL" env-default:"30ms"`
}

type PostgresConfig struct {
	Host        string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port        string        `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User        string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password    string        `yaml:"password" env:"DB_PASSWORD"`
	Name        string        `yaml:"name" env:"DB_NAME" env-default:"storyworld"`
	SSLMode     string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns    int32         `yaml:"max_conns" env:"DB_MAX_CONNECTIONS" env-default:"10"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"DB_MAX_IDLE" env-default:"5m"`
	// SecretsDir is where a db_password file is looked up when Password is empty.
	SecretsDir string `yaml:"secrets_dir" env:"SECRETS_DIR" env-default:"/run/secrets"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RabbitMQConfig: an empty URL disables play events.
type RabbitMQConfig struct {
	URL      string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"storyworld.events"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:8080"`
}

type RateLimitConfig struct {
	// Requests per Window per client IP on login and play routes. Zero disables limiting.
	Limit  uint          `yaml:"limit" env:"RATE_LIMIT" env-default:"60"`
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// Load reads the configuration. A missing file at path falls back to the
// environment; an unreadable or invalid one is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}

	if cfg.Postgres.Password == "" {
		cfg.Postgres.Password = readSecret(cfg.Postgres.SecretsDir, "db_password")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations cleanenv tags cannot express.
func (c *Config) Validate() error {
	switch c.Story.Source {
	case SourceEmbedded, SourcePostgres:
	case SourceFile:
		if c.Story.Path == "" {
			return fmt.Errorf("story source %q needs STORY_PATH", c.Story.Source)
		}
	case SourceHTTP:
		if c.Story.URL == "" {
			return fmt.Errorf("story source %q needs STORY_URL", c.Story.Source)
		}
	default:
		return fmt.Errorf("unknown story source %q", c.Story.Source)
	}
	if c.Reveal.Interval <= 0 {
		return fmt.Errorf("reveal interval must be positive, got %s", c.Reveal.Interval)
	}
	return nil
}

// DSN returns the pgx connection string.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   p.Name,
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func readSecret(dir, name string) string {
	if dir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
