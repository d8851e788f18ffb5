package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v2"

	"submission_service/internal/ratelimit"
	"submission_service/pkg/db"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	ChannelKafka = "kafka"
	ChannelLocal = "local"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   string          `yaml:"storage" env:"STORAGE"`
	DB        DBConfig        `yaml:"db"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES"`
}

type DBConfig struct {
	Host           string `yaml:"host" env:"DB_HOST"`
	Port           int    `yaml:"port" env:"DB_PORT"`
	User           string `yaml:"user" env:"DB_USER"`
	Password       string `yaml:"password" env:"DB_PASSWORD"` //nolint:gosec // config struct, not hardcoded cred
	DBName         string `yaml:"dbname" env:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" env:"DB_SSL_MODE"`
	MigrationsPath string `yaml:"migrations_path" env:"DB_MIGRATIONS_PATH"`
	MaxOpenConns   int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns   int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
}

func (c DBConfig) Postgres() db.Config {
	return db.Config{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		DBName:         c.DBName,
		SSLMode:        c.SSLMode,
		MigrationsPath: c.MigrationsPath,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
	}
}

type KafkaConfig struct {
	Brokers          []string      `yaml:"brokers" env:"KAFKA_BROKERS"`
	GroupID          string        `yaml:"group_id" env:"KAFKA_GROUP_ID"`
	MaxRetries       int           `yaml:"max_retries" env:"KAFKA_MAX_RETRIES"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"KAFKA_RETRY_BASE_DELAY"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"KAFKA_BREAKER_THRESHOLD"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"KAFKA_BREAKER_RESET"`
}

type EventsConfig struct {
	Channel        string `yaml:"channel" env:"EVENTS_CHANNEL"`
	Async          bool   `yaml:"async" env:"EVENTS_ASYNC"`
	WorkerPoolSize int    `yaml:"worker_pool_size" env:"EVENTS_WORKER_POOL_SIZE"`
	QueueSize      int    `yaml:"queue_size" env:"EVENTS_QUEUE_SIZE"`
}

type RateLimitConfig struct {
	Backend    string           `yaml:"backend" env:"RATE_LIMIT_BACKEND"`
	Student    []ratelimit.Tier `yaml:"student"`
	Instructor []ratelimit.Tier `yaml:"instructor"`
}

func (c RateLimitConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{Student: c.Student, Instructor: c.Instructor}
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"` //nolint:gosec // config struct, not hardcoded cred
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"CACHE_ENABLED"`
	TTL     time.Duration `yaml:"ttl" env:"CACHE_TTL"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// Load reads the YAML file, fills defaults, then applies environment
// overrides before validating.
func Load() (*Config, error) {
	return LoadFile(getConfigPath())
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from env/flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)
	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env overrides: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	possiblePaths := []string{
		"config/config.yaml",
		"/etc/submission-service/config.yaml",
		"./config.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "config.yaml"
}

func setDefaults(cfg *Config) {
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}

	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "submission-notifier-group"
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBaseDelay == 0 {
		cfg.Kafka.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.Kafka.BreakerThreshold == 0 {
		cfg.Kafka.BreakerThreshold = 5
	}
	if cfg.Kafka.BreakerReset == 0 {
		cfg.Kafka.BreakerReset = 30 * time.Second
	}

	if cfg.Events.Channel == "" {
		cfg.Events.Channel = ChannelKafka
	}
	if cfg.Events.WorkerPoolSize == 0 {
		cfg.Events.WorkerPoolSize = 5
	}
	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = 1000
	}

	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = BackendMemory
	}
	defaults := ratelimit.DefaultPolicy()
	if len(cfg.RateLimit.Student) == 0 {
		cfg.RateLimit.Student = defaults.Student
	}
	if len(cfg.RateLimit.Instructor) == 0 {
		cfg.RateLimit.Instructor = defaults.Instructor
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.DBName == "" {
			return errors.New("database configuration is incomplete")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	switch cfg.Events.Channel {
	case ChannelKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("at least one Kafka broker must be specified")
		}
	case ChannelLocal:
	default:
		return fmt.Errorf("unknown events channel %q", cfg.Events.Channel)
	}
	if cfg.Events.WorkerPoolSize < 0 || cfg.Events.QueueSize < 0 {
		return errors.New("events worker pool and queue sizes must not be negative")
	}

	switch cfg.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("redis address must be set for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
	if err := cfg.RateLimit.Policy().Validate(); err != nil {
		return err
	}

	if cfg.Cache.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis address must be set when the cache is enabled")
	}

	return nil
}
