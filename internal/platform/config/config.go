package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ghostauth/pkg/platform/middleware/metadata"
	pstrings "ghostauth/pkg/platform/strings"
)

// ProfileBackend selects where user baselines are kept.
type ProfileBackend string

const (
	BackendMemory   ProfileBackend = "memory"
	BackendRedis    ProfileBackend = "redis"
	BackendPostgres ProfileBackend = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server    Server         `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig    `yaml:"redis"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	Scoring   ScoringConfig  `yaml:"scoring"`
	RateLimit RateLimit      `yaml:"rate_limit"`
	Backend   ProfileBackend `yaml:"profile_backend"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string `yaml:"addr"`
	// JWTSigningKey enables the optional bearer identity check when set.
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	JWTAudience     string        `yaml:"jwt_audience"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	// TrustedProxies lists the CIDRs or addresses whose forwarding headers
	// are believed when deriving the client IP.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	SessionTopic string   `yaml:"session_topic"`
	Partitions   int32    `yaml:"partitions"`
}

// ScoringConfig tunes the trust scorer.
type ScoringConfig struct {
	// AdaptThreshold: a score strictly above it replaces the baseline.
	AdaptThreshold int `yaml:"adapt_threshold"`
	// LowTrustThreshold: scores at or below it raise a low-trust audit event.
	LowTrustThreshold int `yaml:"low_trust_threshold"`
}

// RateLimit bounds per-IP ingress requests.
type RateLimit struct {
	PerMinute int `yaml:"per_minute"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTIssuer:       "ghostauth",
			JWTAudience:     "ghostauth-telemetry",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			SessionTopic: "ghostauth.sessions",
			Partitions:   3,
		},
		Scoring: ScoringConfig{
			AdaptThreshold:    85,
			LowTrustThreshold: 50,
		},
		RateLimit: RateLimit{PerMinute: 120},
		Backend:   BackendMemory,
	}
}

// Load builds the config from defaults, the YAML file named by
// GHOSTAUTH_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("GHOSTAUTH_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "GHOSTAUTH_ADDR")
	setString(&cfg.Server.JWTSigningKey, "JWT_SIGNING_KEY")
	setString(&cfg.Server.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.Server.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Kafka.SessionTopic, "KAFKA_SESSION_TOPIC")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = pstrings.DedupeAndTrim(strings.Split(v, ","))
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = pstrings.DedupeAndTrim(strings.Split(v, ","))
	}
	if v := os.Getenv("PROFILE_BACKEND"); v != "" {
		cfg.Backend = ProfileBackend(strings.ToLower(v))
	}
	if err := setInt(&cfg.Scoring.AdaptThreshold, "ADAPT_THRESHOLD"); err != nil {
		return err
	}
	if err := setInt(&cfg.Scoring.LowTrustThreshold, "LOW_TRUST_THRESHOLD"); err != nil {
		return err
	}
	return setInt(&cfg.RateLimit.PerMinute, "RATE_LIMIT_PER_MINUTE")
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("profile backend %q requires REDIS_URL", c.Backend)
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("profile backend %q requires DATABASE_URL", c.Backend)
		}
	default:
		return fmt.Errorf("unknown profile backend %q", c.Backend)
	}
	if c.Scoring.AdaptThreshold < 0 || c.Scoring.AdaptThreshold > 100 {
		return fmt.Errorf("adapt threshold must be within [0,100], got %d", c.Scoring.AdaptThreshold)
	}
	if c.Scoring.LowTrustThreshold < 0 || c.Scoring.LowTrustThreshold > 100 {
		return fmt.Errorf("low trust threshold must be within [0,100], got %d", c.Scoring.LowTrustThreshold)
	}
	if _, err := metadata.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}
	return nil
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
