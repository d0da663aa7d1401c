package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings of the campaign server and CLI.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Store       StoreConfig
	Cache       CacheConfig
	Remote      RemoteConfig
	Outbox      OutboxConfig
	Refresh     RefreshConfig
	Monitor     MonitorConfig
	Kafka       KafkaConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	Namespace string
}

// StoreConfig selects the server's persistent backend.
type StoreConfig struct {
	Driver string // postgres | memory
}

// CacheConfig selects the CLI's local campaign cache.
type CacheConfig struct {
	Driver string // bolt | redis
	Path   string
	Bucket string
}

// RemoteConfig describes how the CLI reaches the remote campaign store.
type RemoteConfig struct {
	Driver  string // http | postgres
	URL     string
	Timeout time.Duration
}

type OutboxConfig struct {
	Enabled       bool
	Bucket        string
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	RetentionTime time.Duration
}

type RefreshConfig struct {
	Interval time.Duration
	Tick     time.Duration
}

type MonitorConfig struct {
	Interval time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether sync events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
	Output   string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so both binaries can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "groupbuy"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "groupbuy"),
			User:            getString("DB_USER", "groupbuy"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:       getString("REDIS_URL", "redis://localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getInt("REDIS_DB", 0),
			Namespace: getString("REDIS_NAMESPACE", "groupbuy"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getString("STORE_DRIVER", "postgres")),
		},
		Cache: CacheConfig{
			Driver: strings.ToLower(getString("CACHE_DRIVER", "bolt")),
			Path:   getString("BOLTDB_PATH", "./data/campaigns.db"),
			Bucket: getString("CACHE_BUCKET", "campaigns"),
		},
		Remote: RemoteConfig{
			Driver:  strings.ToLower(getString("REMOTE_DRIVER", "http")),
			URL:     getString("REMOTE_URL", "http://localhost:8080"),
			Timeout: getDuration("REMOTE_TIMEOUT", 5*time.Second),
		},
		Outbox: OutboxConfig{
			Enabled:       getBool("OUTBOX_ENABLED", true),
			Bucket:        getString("OUTBOX_BUCKET", "outbox"),
			Interval:      getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			BatchSize:     getInt("OUTBOX_BATCH_SIZE", 50),
			MaxRetries:    getInt("MAX_RETRY_ATTEMPTS", 5),
			RetentionTime: getDuration("OUTBOX_RETENTION", 24*time.Hour),
		},
		Refresh: RefreshConfig{
			Interval: getDuration("REFRESH_INTERVAL", 30*time.Second),
			Tick:     getDuration("REFRESH_TICK", time.Second),
		},
		Monitor: MonitorConfig{
			Interval: getDuration("MONITOR_INTERVAL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("KAFKA_SYNC_TOPIC", "campaign-sync-events"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
			Output:   getString("LOG_OUTPUT", "stdout"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects unknown driver names early instead of at first use.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "bolt", "redis":
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	switch c.Remote.Driver {
	case "http", "postgres":
	default:
		return fmt.Errorf("unknown REMOTE_DRIVER %q", c.Remote.Driver)
	}
	if c.Refresh.Interval <= 0 || c.Refresh.Tick <= 0 {
		return fmt.Errorf("refresh interval and tick must be positive")
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
