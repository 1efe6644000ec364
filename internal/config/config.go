package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds everything the binaries need at startup. Values come from
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`

	DatabaseDSN   string `yaml:"database_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	JWTSecret        string `yaml:"jwt_secret"`
	EncryptionKeyHex string `yaml:"encryption_key"`

	MessageRetention int           `yaml:"message_retention"`
	RateLimitMax     int           `yaml:"rate_limit_max"`
	RateLimitWindow  time.Duration `yaml:"rate_limit_window"`

	// EncryptionKey is the decoded CHAT_ENCRYPTION_KEY.
	EncryptionKey []byte `yaml:"-"`
}

// Default returns a Config with every tunable set to its default.
func Default() *Config {
	return &Config{
		AppEnv:           "development",
		LogLevel:         "info",
		HTTPAddr:         DefaultHTTPAddr,
		MessageRetention: DefaultMessageRetention,
		RateLimitMax:     DefaultRateLimitMax,
		RateLimitWindow:  DefaultRateLimitWindow,
	}
}

// Load builds the configuration and validates it. An empty path falls back to
// CHAT_CONFIG_FILE; no file at all is fine.
func Load(path string) (*Config, error) {
	// .env є необов'язковим, змінні оточення мають пріоритет
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CHAT_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.EncryptionKeyHex, "CHAT_ENCRYPTION_KEY")

	if c.DatabaseDSN == "" && os.Getenv("DB_HOST") != "" {
		c.DatabaseDSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			envOr("DB_PORT", "5432"),
		)
	}

	if err := setInt(&c.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&c.MessageRetention, "MESSAGE_RETENTION"); err != nil {
		return err
	}
	if err := setInt(&c.RateLimitMax, "RATE_LIMIT_MAX"); err != nil {
		return err
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_WINDOW: %w", err)
		}
		c.RateLimitWindow = d
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN (or DB_HOST) must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	key, err := DecodeEncryptionKey(c.EncryptionKeyHex)
	if err != nil {
		return err
	}
	c.EncryptionKey = key

	if c.MessageRetention <= 0 {
		return fmt.Errorf("message retention must be positive, got %d", c.MessageRetention)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}

// DecodeEncryptionKey turns the hex-encoded key into the 32 raw bytes the
// cipher needs.
func DecodeEncryptionKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("CHAT_ENCRYPTION_KEY must be set")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("CHAT_ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != EncryptionKeyLen {
		return nil, fmt.Errorf("CHAT_ENCRYPTION_KEY must decode to %d bytes, got %d", EncryptionKeyLen, len(key))
	}
	return key, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// NewLogger builds the process logger.
func NewLogger(c *Config) *logrus.Logger {
	log := logrus.New()
	if c.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
