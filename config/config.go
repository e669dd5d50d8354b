package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Cache    CacheConfig    `toml:"cache"`
	Risk     RiskConfig     `toml:"risk"`
	Ingest   IngestConfig   `toml:"ingest"`
	Source   SourceConfig   `toml:"source"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Storage  StorageConfig  `toml:"storage"`
	JWT      JWTConfig      `toml:"jwt"`
	CORS     CORSConfig     `toml:"cors"`
}

type ServerConfig struct {
	Port        int    `toml:"port"`
	MetricsAddr string `toml:"metrics_addr"`
}

type DatabaseConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL is the connection string form accepted by pgxpool.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	Channel         string `toml:"channel"`
	ConnectAttempts int    `toml:"connect_attempts"`
}

// CacheConfig holds per-signal freshness windows in seconds.
type CacheConfig struct {
	TrafficSec int `toml:"port_traffic_seconds"`
	WeatherSec int `toml:"weather_seconds"`
	NewsSec    int `toml:"news_seconds"`
}

func (c CacheConfig) TrafficTTL() time.Duration { return time.Duration(c.TrafficSec) * time.Second }
func (c CacheConfig) WeatherTTL() time.Duration { return time.Duration(c.WeatherSec) * time.Second }
func (c CacheConfig) NewsTTL() time.Duration { return time.Duration(c.NewsSec) * time.Second }

type RiskConfig struct {
	Model            string  `toml:"model"`
	WeatherWeight    float64 `toml:"weather_weight"`
	SentimentWeight  float64 `toml:"sentiment_weight"`
	CongestionWeight float64 `toml:"congestion_weight"`
	HistoricalWeight float64 `toml:"historical_weight"`
	HighThreshold    float64 `toml:"high_threshold"`
	MediumThreshold  float64 `toml:"medium_threshold"`
	SharedPortGraph  bool    `toml:"shared_port_graph"`
}

type IngestConfig struct {
	Enabled     bool `toml:"enabled"`
	IntervalSec int  `toml:"interval_seconds"`
	BackoffSec  int  `toml:"backoff_seconds"`
	Parallelism int  `toml:"parallelism"`
}

func (c IngestConfig) Interval() time.Duration { return time.Duration(c.IntervalSec) * time.Second }
func (c IngestConfig) Backoff() time.Duration { return time.Duration(c.BackoffSec) * time.Second }

type SourceConfig struct {
	Seed          int64   `toml:"seed"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
	TimeoutMS     int     `toml:"timeout_ms"`
}

func (c SourceConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

type MQTTConfig struct {
	Enabled   bool   `toml:"enabled"`
	URL       string `toml:"url"`
	Topic     string `toml:"topic"`
	MaxAgeSec int    `toml:"max_age_seconds"`
}

func (c MQTTConfig) MaxAge() time.Duration { return time.Duration(c.MaxAgeSec) * time.Second }

type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type StorageConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

type JWTConfig struct {
	Secret               string `toml:"secret"`
	ExpiryHours          int    `toml:"expiry_hours"`
	OperatorUser         string `toml:"operator_user"`
	OperatorPasswordHash string `toml:"operator_password_hash"`
}

type CORSConfig struct {
	AllowedOrigins string `toml:"allowed_origins"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080, MetricsAddr: ":9090"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "atlas",
			Password: "atlas_dev_password",
			Name:     "atlas",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Host:            "localhost",
			Port:            6379,
			Channel:         "atlas:risk",
			ConnectAttempts: 10,
		},
		Cache: CacheConfig{TrafficSec: 300, WeatherSec: 600, NewsSec: 900},
		Risk: RiskConfig{
			Model:            "heuristic",
			WeatherWeight:    0.35,
			SentimentWeight:  0.30,
			CongestionWeight: 0.25,
			HistoricalWeight: 0.10,
			HighThreshold:    0.7,
			MediumThreshold:  0.4,
		},
		Ingest:  IngestConfig{Enabled: true, IntervalSec: 300, BackoffSec: 60, Parallelism: 8},
		Source:  SourceConfig{Seed: 42, RatePerSecond: 50, Burst: 100, TimeoutMS: 2000},
		MQTT:    MQTTConfig{URL: "tcp://localhost:1883", Topic: "atlas/ais/+", MaxAgeSec: 600},
		Kafka:   KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "risk.scored"},
		Storage: StorageConfig{Driver: "memory", SQLitePath: "atlas.db"},
		JWT:     JWTConfig{Secret: "atlas_dev_secret", ExpiryHours: 24, OperatorUser: "operator"},
		CORS:    CORSConfig{AllowedOrigins: "*"},
	}
}

// Default returns the built-in settings without reading a file or the environment.
func Default() *Config {
	cfg := defaults()
	return &cfg
}

// LoadConfig builds the configuration from defaults, then the optional TOML file named
// by ATLAS_CONFIG_FILE, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ATLAS_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &cfg.Server.Port},
		{"DB_PORT", &cfg.Database.Port},
		{"REDIS_PORT", &cfg.Redis.Port},
		{"REDIS_DB", &cfg.Redis.DB},
		{"PORT_TRAFFIC_CACHE_DURATION", &cfg.Cache.TrafficSec},
		{"WEATHER_CACHE_DURATION", &cfg.Cache.WeatherSec},
		{"NEWS_CACHE_DURATION", &cfg.Cache.NewsSec},
		{"INGEST_INTERVAL_SEC", &cfg.Ingest.IntervalSec},
		{"INGEST_BACKOFF_SEC", &cfg.Ingest.BackoffSec},
		{"INGEST_PARALLELISM", &cfg.Ingest.Parallelism},
		{"SOURCE_BURST", &cfg.Source.Burst},
		{"SOURCE_TIMEOUT_MS", &cfg.Source.TimeoutMS},
		{"MQTT_MAX_AGE_SEC", &cfg.MQTT.MaxAgeSec},
		{"JWT_EXPIRY_HOURS", &cfg.JWT.ExpiryHours},
	}
	for _, f := range ints {
		if *f.dst, err = getIntEnv(f.key, *f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"RISK_WEATHER_WEIGHT", &cfg.Risk.WeatherWeight},
		{"RISK_SENTIMENT_WEIGHT", &cfg.Risk.SentimentWeight},
		{"RISK_CONGESTION_WEIGHT", &cfg.Risk.CongestionWeight},
		{"RISK_HISTORICAL_WEIGHT", &cfg.Risk.HistoricalWeight},
		{"RISK_HIGH_THRESHOLD", &cfg.Risk.HighThreshold},
		{"RISK_MEDIUM_THRESHOLD", &cfg.Risk.MediumThreshold},
		{"SOURCE_RATE_PER_SEC", &cfg.Source.RatePerSecond},
	}
	for _, f := range floats {
		if *f.dst, err = getFloatEnv(f.key, *f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"DB_ENABLED", &cfg.Database.Enabled},
		{"REDIS_ENABLED", &cfg.Redis.Enabled},
		{"INGEST_ENABLED", &cfg.Ingest.Enabled},
		{"MQTT_ENABLED", &cfg.MQTT.Enabled},
		{"KAFKA_ENABLED", &cfg.Kafka.Enabled},
		{"CASCADE_SHARED_PORT_GRAPH", &cfg.Risk.SharedPortGraph},
	}
	for _, f := range bools {
		if *f.dst, err = getBoolEnv(f.key, *f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	seed, err := getIntEnv("SIMULATOR_SEED", int(cfg.Source.Seed))
	if err != nil {
		return fmt.Errorf("invalid SIMULATOR_SEED: %w", err)
	}
	cfg.Source.Seed = int64(seed)

	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", cfg.Server.MetricsAddr)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Channel = getEnv("REDIS_CHANNEL", cfg.Redis.Channel)
	cfg.Risk.Model = getEnv("RISK_MODEL", cfg.Risk.Model)
	cfg.MQTT.URL = getEnv("MQTT_URL", cfg.MQTT.URL)
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.OperatorUser = getEnv("OPERATOR_USER", cfg.JWT.OperatorUser)
	cfg.JWT.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", cfg.JWT.OperatorPasswordHash)
	cfg.CORS.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Cache.TrafficSec <= 0 || c.Cache.WeatherSec <= 0 || c.Cache.NewsSec <= 0 {
		return fmt.Errorf("%w: cache durations must be positive", ErrInvalid)
	}
	if c.Ingest.IntervalSec <= 0 || c.Ingest.BackoffSec <= 0 {
		return fmt.Errorf("%w: ingest interval and backoff must be positive", ErrInvalid)
	}
	if c.Source.TimeoutMS <= 0 {
		return fmt.Errorf("%w: SOURCE_TIMEOUT_MS must be positive", ErrInvalid)
	}
	switch c.Risk.Model {
	case "heuristic", "regression":
	default:
		return fmt.Errorf("%w: unknown RISK_MODEL %q", ErrInvalid, c.Risk.Model)
	}
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrInvalid, c.Storage.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: KAFKA_BROKERS required when kafka is enabled", ErrInvalid)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
