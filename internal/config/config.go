package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. HEALTHTRACK_DATABASE_HOST.
const EnvPrefix = "HEALTHTRACK"

const (
	DispatcherInProcess = "inprocess"
	DispatcherRedis     = "redis"

	EventsNone  = "none"
	EventsRedis = "redis"
	EventsKafka = "kafka"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Events     EventsConfig     `mapstructure:"events"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" split_words:"true"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type ReconcileConfig struct {
	Dispatcher string        `mapstructure:"dispatcher"`
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size" split_words:"true"`
	Timeout    time.Duration `mapstructure:"timeout"`
	QueueKey   string        `mapstructure:"queue_key" split_words:"true"`
}

type SweepConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	RatePerSecond float64       `mapstructure:"rate_per_second" split_words:"true"`
	Burst         int           `mapstructure:"burst"`
}

type EventsConfig struct {
	Driver string `mapstructure:"driver"`
	Topic  string `mapstructure:"topic"`
}

type CacheConfig struct {
	CriticalTTL time.Duration `mapstructure:"critical_ttl" split_words:"true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" split_words:"true"`
}

type MonitoringConfig struct {
	MetricsPath string `mapstructure:"metrics_path" split_words:"true"`
	Namespace   string `mapstructure:"namespace"`
}

// LoadConfig reads config.yml from path (or the default search paths when
// path is empty), then applies .env and HEALTHTRACK_* overrides.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "healthtrack")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("jwt.issuer", "healthtrack")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("reconcile.dispatcher", DispatcherInProcess)
	v.SetDefault("reconcile.workers", 4)
	v.SetDefault("reconcile.queue_size", 256)
	v.SetDefault("reconcile.timeout", 5*time.Second)
	v.SetDefault("reconcile.queue_key", "healthtrack:reconcile")

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", 15*time.Minute)
	v.SetDefault("sweep.rate_per_second", 20.0)
	v.SetDefault("sweep.burst", 5)

	v.SetDefault("events.driver", EventsNone)
	v.SetDefault("events.topic", "patient.status")

	v.SetDefault("cache.critical_ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "healthtrack")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverMemory {
		return fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.Reconcile.Dispatcher {
	case DispatcherInProcess, DispatcherRedis:
	default:
		return fmt.Errorf("reconcile.dispatcher must be %q or %q", DispatcherInProcess, DispatcherRedis)
	}
	if c.Reconcile.Workers <= 0 || c.Reconcile.QueueSize <= 0 {
		return fmt.Errorf("reconcile.workers and reconcile.queue_size must be positive")
	}
	if c.Reconcile.Timeout <= 0 {
		return fmt.Errorf("reconcile.timeout must be positive")
	}
	if c.Sweep.Enabled && (c.Sweep.Interval <= 0 || c.Sweep.RatePerSecond <= 0 || c.Sweep.Burst <= 0) {
		return fmt.Errorf("sweep.interval, sweep.rate_per_second and sweep.burst must be positive")
	}
	switch c.Events.Driver {
	case EventsNone, EventsRedis:
	case EventsKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when events.driver is kafka")
		}
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}
	return nil
}
