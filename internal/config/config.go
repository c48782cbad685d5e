package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime parameter of the binary.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	LocalStore LocalStoreConfig `yaml:"localstore"`
	Auth       AuthConfig       `yaml:"auth"`
	Closing    ClosingConfig    `yaml:"closing"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Port          int     `yaml:"port" env:"SALEZ_HTTP_PORT"`
	MaxConcurrent int     `yaml:"max_concurrent" env:"SALEZ_HTTP_MAX_CONCURRENT"`
	RatePerSec    float64 `yaml:"rate_per_sec" env:"SALEZ_HTTP_RATE_PER_SEC"`
	Burst         int     `yaml:"burst" env:"SALEZ_HTTP_BURST"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver" env:"SALEZ_STORE_DRIVER"` // postgres | memory
	CartID        string `yaml:"cart_id" env:"SALEZ_STORE_CART_ID"`
	TxMaxAttempts int    `yaml:"tx_max_attempts" env:"SALEZ_STORE_TX_MAX_ATTEMPTS"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"SALEZ_DB_HOST"`
	Port     int    `yaml:"port" env:"SALEZ_DB_PORT"`
	User     string `yaml:"user" env:"SALEZ_DB_USER"`
	Password string `yaml:"password" env:"SALEZ_DB_PASSWORD"`
	Database string `yaml:"database" env:"SALEZ_DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"SALEZ_DB_SSLMODE"`
	MaxConns int32  `yaml:"max_conns" env:"SALEZ_DB_MAX_CONNS"`
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SALEZ_RABBITMQ_ENABLED"`
	Host     string `yaml:"host" env:"SALEZ_RABBITMQ_HOST"`
	Port     int    `yaml:"port" env:"SALEZ_RABBITMQ_PORT"`
	User     string `yaml:"user" env:"SALEZ_RABBITMQ_USER"`
	Password string `yaml:"password" env:"SALEZ_RABBITMQ_PASSWORD"`
	VHost    string `yaml:"vhost" env:"SALEZ_RABBITMQ_VHOST"`
	// NotificationTopic is the routing key used on the notifications fanout.
	NotificationTopic string `yaml:"notification_topic" env:"SALEZ_RABBITMQ_NOTIFICATION_TOPIC"`
	Prefetch          int    `yaml:"prefetch" env:"SALEZ_RABBITMQ_PREFETCH"`
}

type LocalStoreConfig struct {
	Path string `yaml:"path" env:"SALEZ_LOCALSTORE_PATH"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"SALEZ_AUTH_JWT_SECRET"`
	Disabled  bool   `yaml:"disabled" env:"SALEZ_AUTH_DISABLED"`
}

type ClosingConfig struct {
	Schedule string `yaml:"schedule" env:"SALEZ_CLOSING_SCHEDULE"` // cron expression, empty disables
	Timezone string `yaml:"timezone" env:"SALEZ_CLOSING_TIMEZONE"` // IANA name, empty means Local
}

type LogConfig struct {
	Level string `yaml:"level" env:"SALEZ_LOG_LEVEL"`
}

func Default() *Config {
	return &Config{
		HTTP:       HTTPConfig{Port: 3000, MaxConcurrent: 50, RatePerSec: 20, Burst: 40},
		Store:      StoreConfig{Driver: "postgres", CartID: "current_cart", TxMaxAttempts: 5},
		Database:   DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 10},
		RabbitMQ:   RabbitMQConfig{Port: 5672, VHost: "/", NotificationTopic: "salez.notifications", Prefetch: 10},
		LocalStore: LocalStoreConfig{Path: "salez-local.db"},
		Log:        LogConfig{Level: "info"},
	}
}

// LoadConfig applies defaults, then the YAML file (if it exists), then .env and
// process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
			return fmt.Errorf("database config incomplete")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.RabbitMQ.Enabled && (c.RabbitMQ.Host == "" || c.RabbitMQ.User == "") {
		return fmt.Errorf("rabbitmq config incomplete")
	}
	if c.Store.CartID == "" {
		return fmt.Errorf("store.cart_id must not be empty")
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.disabled is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves closing.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Closing.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Closing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("closing.timezone: %w", err)
	}
	return loc, nil
}

// DSN escapes credentials, so passwords may contain '@', '/' or ':'.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
