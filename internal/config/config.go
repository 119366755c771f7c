package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreS3       = "s3"

	ExpiryMemory = "memory"
	ExpiryRedis  = "redis"

	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Bot      BotConfig      `yaml:"bot"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BotConfig struct {
	Token                string `yaml:"token"`
	Username             string `yaml:"username"`
	AdminID              int64  `yaml:"admin_id"`
	ChannelID            int64  `yaml:"channel_id"`
	AdURL                string `yaml:"ad_url"`
	Mode                 string `yaml:"mode"`
	PollTimeoutSeconds   int    `yaml:"poll_timeout_seconds"`
	WebhookURL           string `yaml:"webhook_url"`
	WebhookSecret        string `yaml:"webhook_secret"`
	MaxConcurrentUpdates int    `yaml:"max_concurrent_updates"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	DataFile   string `yaml:"data_file"`
	SQLitePath string `yaml:"sqlite_path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	DeletionKey string `yaml:"deletion_key"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	ObjectKey string `yaml:"object_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ExpiryConfig struct {
	Delay        time.Duration `yaml:"delay"`
	Backend      string        `yaml:"backend"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Bot: BotConfig{
			Mode:                 ModePolling,
			PollTimeoutSeconds:   30,
			MaxConcurrentUpdates: 16,
		},
		Store: StoreConfig{
			Driver:     StoreFile,
			DataFile:   "video_data.json",
			SQLitePath: "tgdrop.db",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DeletionKey: "tgdrop:expiry:deletions",
		},
		S3: S3Config{
			ObjectKey: "tgdrop/catalog.json",
		},
		Expiry: ExpiryConfig{
			Delay:        4 * time.Hour,
			Backend:      ExpiryMemory,
			PollInterval: 5 * time.Second,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// Validate reports every startup problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Bot.Token) == "" {
		add("bot token is required (BOT_TOKEN)")
	}
	if c.Bot.AdminID == 0 {
		add("admin user id is required (ADMIN_USER_ID)")
	}
	if c.Bot.ChannelID == 0 {
		add("channel id is required (CHANNEL_ID)")
	}
	// An empty username is resolved from getMe at startup.
	if strings.ContainsAny(c.Bot.Username, "@ /?") {
		add("bot username %q must be the bare username", c.Bot.Username)
	}
	if !isHTTPURL(c.Bot.AdURL) {
		add("ad url must be an absolute http(s) url (AD_URL)")
	}
	if c.Bot.MaxConcurrentUpdates <= 0 {
		add("max concurrent updates must be positive")
	}
	if c.Bot.PollTimeoutSeconds < 0 {
		add("poll timeout must not be negative")
	}

	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if !strings.HasPrefix(c.Bot.WebhookURL, "https://") {
			add("webhook mode needs an https webhook url (WEBHOOK_URL)")
		}
		if c.HTTP.Addr == "" {
			add("webhook mode needs an http listen address (HTTP_ADDR)")
		}
	default:
		add("unknown bot mode %q", c.Bot.Mode)
	}

	switch c.Store.Driver {
	case StoreFile:
		if c.Store.DataFile == "" {
			add("file store needs a data file (DATA_FILE)")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			add("sqlite store needs a database path (SQLITE_PATH)")
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			add("postgres store needs a dsn (POSTGRES_DSN)")
		}
	case StoreS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			add("s3 store needs an endpoint and a bucket (S3_ENDPOINT, S3_BUCKET)")
		}
	default:
		add("unknown store driver %q", c.Store.Driver)
	}

	if c.Expiry.Delay <= 0 {
		add("deletion delay must be positive (DELETION_DELAY)")
	}
	switch c.Expiry.Backend {
	case ExpiryMemory:
	case ExpiryRedis:
		if c.Redis.Addr == "" {
			add("redis expiry backend needs an address (REDIS_ADDR)")
		}
		if c.Expiry.PollInterval <= 0 {
			add("expiry poll interval must be positive (EXPIRY_POLL_INTERVAL)")
		}
	default:
		add("unknown expiry backend %q", c.Expiry.Backend)
	}

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.Bot.Username = strings.TrimPrefix(strings.TrimSpace(c.Bot.Username), "@")
	c.Bot.Mode = strings.ToLower(strings.TrimSpace(c.Bot.Mode))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Expiry.Backend = strings.ToLower(strings.TrimSpace(c.Expiry.Backend))
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	overrideString("APP_ENV", &cfg.Env)
	overrideString("HTTP_ADDR", &cfg.HTTP.Addr)
	overrideString("LOG_LEVEL", &cfg.Log.Level)

	overrideString("BOT_TOKEN", &cfg.Bot.Token)
	overrideString("BOT_USERNAME", &cfg.Bot.Username)
	if err := overrideInt64("ADMIN_USER_ID", &cfg.Bot.AdminID); err != nil {
		return err
	}
	if err := overrideInt64("CHANNEL_ID", &cfg.Bot.ChannelID); err != nil {
		return err
	}
	overrideString("AD_URL", &cfg.Bot.AdURL)
	overrideString("BOT_MODE", &cfg.Bot.Mode)
	if err := overrideInt("POLL_TIMEOUT_SECONDS", &cfg.Bot.PollTimeoutSeconds); err != nil {
		return err
	}
	overrideString("WEBHOOK_URL", &cfg.Bot.WebhookURL)
	overrideString("WEBHOOK_SECRET", &cfg.Bot.WebhookSecret)
	if err := overrideInt("MAX_CONCURRENT_UPDATES", &cfg.Bot.MaxConcurrentUpdates); err != nil {
		return err
	}

	overrideString("STORE_DRIVER", &cfg.Store.Driver)
	overrideString("DATA_FILE", &cfg.Store.DataFile)
	overrideString("SQLITE_PATH", &cfg.Store.SQLitePath)
	overrideString("POSTGRES_DSN", &cfg.Postgres.DSN)

	overrideString("REDIS_ADDR", &cfg.Redis.Addr)
	overrideString("REDIS_PASSWORD", &cfg.Redis.Password)
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	overrideString("S3_ENDPOINT", &cfg.S3.Endpoint)
	overrideString("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	overrideString("S3_SECRET_KEY", &cfg.S3.SecretKey)
	overrideString("S3_BUCKET", &cfg.S3.Bucket)
	overrideString("S3_OBJECT_KEY", &cfg.S3.ObjectKey)
	if err := overrideBool("S3_USE_SSL", &cfg.S3.UseSSL); err != nil {
		return err
	}

	if err := overrideDuration("DELETION_DELAY", &cfg.Expiry.Delay); err != nil {
		return err
	}
	overrideString("EXPIRY_BACKEND", &cfg.Expiry.Backend)
	if err := overrideDuration("EXPIRY_POLL_INTERVAL", &cfg.Expiry.PollInterval); err != nil {
		return err
	}
	return nil
}

func overrideString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideInt64(key string, target *int64) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s int64: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
