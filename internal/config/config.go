package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Credential store backends.
const (
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
	StoreStatic = "static"
)

// sandboxEnvironment is the only target environment where API users can
// be created through the API.
const sandboxEnvironment = "sandbox"

// Config holds all environment-based configuration for momo-credentials.
type Config struct {
	// Integration names the credential set in the store, logs and metrics.
	Integration string `env:"MOMO_INTEGRATION" envDefault:"default"`

	// Target environment sent as X-Target-Environment on product calls.
	TargetEnvironment string `env:"MOMO_ENVIRONMENT" envDefault:"sandbox"`

	BaseURL string `env:"MOMO_BASE_URL" envDefault:"https://sandbox.momodeveloper.mtn.com"`
	Product string `env:"MOMO_PRODUCT" envDefault:"collection"`

	// Subscription key from the developer portal.
	SubscriptionKey string `env:"MOMO_SUBSCRIPTION_KEY"`

	CallbackHost string `env:"MOMO_CALLBACK_HOST" envDefault:"webhook.site"`

	// Pinned credentials issued by the partner portal. When both are set
	// no provisioning happens and the static store is used.
	APIUserID string `env:"MOMO_API_USER_ID"`
	APIKey    string `env:"MOMO_API_KEY"`

	SafetyMargin time.Duration `env:"MOMO_TOKEN_SAFETY_MARGIN" envDefault:"0s"`
	IssueTimeout time.Duration `env:"MOMO_ISSUE_TIMEOUT" envDefault:"30s"`

	// Credential persistence.
	Store      string `env:"CREDENTIAL_STORE" envDefault:"bolt"`
	DBPath     string `env:"CREDENTIAL_DB_PATH"`
	Passphrase string `env:"CREDENTIAL_PASSPHRASE"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" envDefault:":9090"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the subscription key to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Pinned() {
		cfg.Store = StoreStatic
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// bbolt opens the file relative to the working directory, so the path
	// is made absolute up front to keep log lines unambiguous.
	if cfg.Store == StoreBolt {
		if cfg.DBPath == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}

			cfg.DBPath = p
		}

		absPath, err := filepath.Abs(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("resolving credential db path to absolute path: %w", err)
		}

		cfg.DBPath = absPath
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SubscriptionKey == "" {
		return fmt.Errorf("MOMO_SUBSCRIPTION_KEY is required")
	}

	if c.Integration == "" {
		return fmt.Errorf("MOMO_INTEGRATION must not be empty")
	}

	if err := momo.Product(c.Product).Validate(); err != nil {
		return fmt.Errorf("MOMO_PRODUCT: %w", err)
	}

	if (c.APIUserID == "") != (c.APIKey == "") {
		return fmt.Errorf("MOMO_API_USER_ID and MOMO_API_KEY must be set together")
	}

	if c.APIUserID != "" {
		if _, err := uuid.Parse(c.APIUserID); err != nil {
			return fmt.Errorf("MOMO_API_USER_ID must be a UUID: %w", err)
		}
	}

	// API users can only be created against the sandbox. Anywhere else
	// the pair comes from the partner portal and has to be pinned.
	if !c.IsSandbox() && !c.Pinned() {
		return fmt.Errorf("MOMO_API_USER_ID and MOMO_API_KEY are required when MOMO_ENVIRONMENT is %q", c.TargetEnvironment)
	}

	if c.SafetyMargin < 0 {
		return fmt.Errorf("MOMO_TOKEN_SAFETY_MARGIN must not be negative")
	}

	if c.IssueTimeout <= 0 {
		return fmt.Errorf("MOMO_ISSUE_TIMEOUT must be positive")
	}

	switch c.Store {
	case StoreBolt:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CREDENTIAL_STORE is redis")
		}
	case StoreStatic:
		if !c.Pinned() {
			return fmt.Errorf("CREDENTIAL_STORE=static requires MOMO_API_USER_ID and MOMO_API_KEY")
		}
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be one of bolt, redis, static; got %q", c.Store)
	}

	return nil
}

// Pinned reports whether portal-issued credentials are configured.
func (c *Config) Pinned() bool {
	return c.APIUserID != "" && c.APIKey != ""
}

// PinnedCredentials returns the configured API user and key. Only valid
// after Load succeeded with Pinned() true.
func (c *Config) PinnedCredentials() momo.Credentials {
	ref := uuid.MustParse(c.APIUserID)

	return momo.Credentials{
		User: momo.APIUser{ReferenceID: ref, SubscriptionKey: c.SubscriptionKey},
		Key:  momo.APIKey{Value: c.APIKey, ReferenceID: ref},
	}
}

// DefaultDBPath returns the default credential database location:
// ~/.momo-credentials/credentials.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".momo-credentials", "credentials.db"), nil
}

// IsSandbox reports whether requests target the MoMo sandbox.
func (c *Config) IsSandbox() bool {
	return c.TargetEnvironment == sandboxEnvironment
}
