package config

import (
	"fmt"
	"strconv"
	"time"

	pkgconfig "github.com/lookbook-ai/lookbook/pkg/config"
)

// defaultOverloadChance is used when MODEL_OVERLOAD_CHANCE is unset or not
// a number.
const defaultOverloadChance = 0.2

// Config holds all configuration for the lookbook service. It is built once
// at process start and passed by injection; nothing reads the environment at
// call time.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPPort int `env:"HTTP_PORT" envDefault:"4000"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Generation engine
	OverloadChanceRaw  string        `env:"MODEL_OVERLOAD_CHANCE"`
	GenerationDelayMin time.Duration `env:"GENERATION_DELAY_MIN" envDefault:"1s"`
	GenerationDelayMax time.Duration `env:"GENERATION_DELAY_MAX" envDefault:"2s"`

	// Uploads
	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// CORS
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"lookbook"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"lookbook_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"lookbook_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (history cache)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load lookbook config: %w", err)
	}
	if cfg.GenerationDelayMax < cfg.GenerationDelayMin {
		return nil, fmt.Errorf("GENERATION_DELAY_MAX must be >= GENERATION_DELAY_MIN")
	}
	return cfg, nil
}

// OverloadChance returns the simulated overload probability, clamped to
// [0, 1]. An unset or non-numeric value falls back to the default of 0.2.
func (c *Config) OverloadChance() float64 {
	chance, err := strconv.ParseFloat(c.OverloadChanceRaw, 64)
	if err != nil {
		return defaultOverloadChance
	}
	if chance < 0 {
		return 0
	}
	if chance > 1 {
		return 1
	}
	return chance
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
