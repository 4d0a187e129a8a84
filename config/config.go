package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Configuration holds everything the terminal needs at boot: where the backend lives,
// where the catalog cache is stored and how the local UI API is exposed.
type Configuration struct {
	Address     string   `env:"ADDRESS" envDefault:"127.0.0.1:8080"`   // Local UI API listen address
	LocalAPIKey string   `env:"LOCAL_API_KEY"`                         // X-API-KEY for the local API (empty = open)
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	APIBaseURL string        `env:"API_BASE_URL,required"`      // Backend REST root, e.g. https://api.example.com/api/
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"` // Per-call timeout for backend requests

	CacheDriver string `env:"CACHE_DRIVER" envDefault:"sqlite"` // sqlite | postgres | mysql
	CacheDSN    string `env:"CACHE_DSN" envDefault:"catalog.db"`
	DBHost      string `env:"DB_HOST"`
	DBPort      string `env:"DB_PORT"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`

	// Optional boot session; normally installed later through POST /session.
	SessionToken string `env:"SESSION_TOKEN"`
	TenantID     string `env:"TENANT_ID"`
	SubsidiaryID string `env:"SUBSIDIARY_ID"`

	PaymentMethod   string        `env:"PAYMENT_METHOD" envDefault:"cash"`
	RefreshInterval time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"0s"` // 0 disables the refresh worker

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`   // text | json
	LogOutput     string `env:"LOG_OUTPUT" envDefault:"stdout"` // stdout | file | both
	LogPath       string `env:"LOG_PATH" envDefault:"logs"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"50"` // MB
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAge     int    `env:"LOG_MAX_AGE" envDefault:"14"` // days
	LogCompress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// NewConfig loads the given env files (or ./.env when none are given) and parses the
// process environment into a Configuration. Missing env files are not an error.
func NewConfig(files ...string) (*Configuration, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
