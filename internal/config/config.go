// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const prefix = "CHORELY_"

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"chorely.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	BaseURL   string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// AllowedOrigins restricts WebSocket upgrades. Empty accepts any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Expo     ExpoConfig     `envPrefix:"EXPO_"`
	WebPush  WebPushConfig  `envPrefix:"VAPID_"`
	Postmark PostmarkConfig `envPrefix:"POSTMARK_"`
	Feed     FeedConfig     `envPrefix:"FEED_"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	JoinRateLimit   int           `env:"JOIN_RATE_LIMIT" envDefault:"10"`
}

type ExpoConfig struct {
	URL         string        `env:"URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	AccessToken string        `env:"ACCESS_TOKEN"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxRetries  uint64        `env:"MAX_RETRIES" envDefault:"3"`
	Backoff     time.Duration `env:"BACKOFF" envDefault:"250ms"`
}

type WebPushConfig struct {
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
	Subscriber string `env:"SUBSCRIBER" envDefault:"noreply@chorely.app"`
}

// Enabled reports whether both VAPID keys are set.
func (c WebPushConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != ""
}

type PostmarkConfig struct {
	ServerToken string `env:"SERVER_TOKEN"`
	FromEmail   string `env:"FROM_EMAIL" envDefault:"noreply@chorely.app"`
}

type FeedConfig struct {
	Workers int `env:"WORKERS" envDefault:"4"`
	Buffer  int `env:"BUFFER" envDefault:"256"`
}

// Load reads an optional .env file, then parses CHORELY_* variables.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("%sJWT_SECRET must be at least 16 characters", prefix)
	}
	if (c.WebPush.PublicKey == "") != (c.WebPush.PrivateKey == "") {
		return fmt.Errorf("%sVAPID_PUBLIC_KEY and %sVAPID_PRIVATE_KEY must be set together", prefix, prefix)
	}
	if c.Feed.Workers < 1 || c.Feed.Buffer < 1 {
		return fmt.Errorf("%sFEED_WORKERS and %sFEED_BUFFER must be positive", prefix, prefix)
	}
	return nil
}
