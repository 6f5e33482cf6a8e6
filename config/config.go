package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/mirror"
	"github.com/Tobby-pro/New-Rental-Stack/internal/postgres"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	RateLimit       RateLimit     `yaml:"rateLimit"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GRPC struct {
	Addr          string        `yaml:"addr"`
	Reflection    bool          `yaml:"reflection"`
	ProbeInterval time.Duration `yaml:"probeInterval"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // rental-chat
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

func (p Postgres) ToPGConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
	}
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

func (r Redis) ToMirrorConfig() mirror.Config {
	return mirror.Config{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	}
}

type Auth struct {
	Secret        string        `yaml:"secret"`        // HS256
	PublicKeyPath string        `yaml:"publicKeyPath"` // RS256, used when secret is empty
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Realtime struct {
	SendBuffer      int           `yaml:"sendBuffer"`
	PingInterval    time.Duration `yaml:"pingInterval"`
	EventsPerSecond float64       `yaml:"eventsPerSecond"`
	EventBurst      int           `yaml:"eventBurst"`
}

type Store struct {
	Timeout       time.Duration `yaml:"timeout"`
	MirrorTimeout time.Duration `yaml:"mirrorTimeout"`
}

type Mirror struct {
	MessageTTL time.Duration `yaml:"messageTTL"`
	TxRetries  int           `yaml:"txRetries"`
}

type Queue struct {
	Name        string        `yaml:"name"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetry    int           `yaml:"maxRetry"`
	UniqueTTL   time.Duration `yaml:"uniqueTTL"`
	TaskTimeout time.Duration `yaml:"taskTimeout"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Realtime Realtime `yaml:"realtime"`
	Store    Store    `yaml:"store"`
	Mirror   Mirror   `yaml:"mirror"`
	Queue    Queue    `yaml:"queue"`
}

// LoadConfig reads .env (if present), the YAML file at CONFIG_PATH and then
// applies environment overrides.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv("CONFIG_PATH") == "":
		// env-only deployment
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Postgres.DSN, "POSTGRES_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Auth.Secret, "JWT_SECRET")
	setString(&c.Auth.PublicKeyPath, "JWT_PUBLIC_KEY_PATH")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.GRPC.Addr, "GRPC_ADDR")
	setString(&c.Logging.Env, "APP_ENV")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Auth.Secret == "" && c.Auth.PublicKeyPath == "" {
		return errors.New("auth.secret or auth.publicKeyPath is required")
	}
	if c.Auth.ClockSkew < 0 || c.Auth.ClockSkew > time.Minute {
		return errors.New("auth.clockSkew must be in [0..1m]")
	}
	if c.Realtime.SendBuffer < 0 {
		return errors.New("realtime.sendBuffer must be >= 0")
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.HTTP.RequestTimeout = durationOr(c.HTTP.RequestTimeout, 30*time.Second)
	c.HTTP.ShutdownTimeout = durationOr(c.HTTP.ShutdownTimeout, 10*time.Second)
	if c.HTTP.RateLimit.RPS <= 0 {
		c.HTTP.RateLimit.RPS = 10
	}
	if c.HTTP.RateLimit.Burst <= 0 {
		c.HTTP.RateLimit.Burst = 20
	}
	c.GRPC.ProbeInterval = durationOr(c.GRPC.ProbeInterval, 5*time.Second)

	if c.Logging.Service == "" {
		c.Logging.Service = "rental-chat"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}

	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 256
	}
	c.Realtime.PingInterval = durationOr(c.Realtime.PingInterval, 15*time.Second)
	if c.Realtime.EventsPerSecond <= 0 {
		c.Realtime.EventsPerSecond = 20
	}
	if c.Realtime.EventBurst <= 0 {
		c.Realtime.EventBurst = 40
	}

	c.Store.Timeout = durationOr(c.Store.Timeout, 3*time.Second)
	c.Store.MirrorTimeout = durationOr(c.Store.MirrorTimeout, time.Second)
	c.Mirror.MessageTTL = durationOr(c.Mirror.MessageTTL, 90*24*time.Hour)
	if c.Mirror.TxRetries <= 0 {
		c.Mirror.TxRetries = 5
	}

	if c.Queue.Name == "" {
		c.Queue.Name = "mirror"
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 4
	}
	if c.Queue.MaxRetry <= 0 {
		c.Queue.MaxRetry = 10
	}
	c.Queue.UniqueTTL = durationOr(c.Queue.UniqueTTL, time.Minute)
	c.Queue.TaskTimeout = durationOr(c.Queue.TaskTimeout, 30*time.Second)
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
