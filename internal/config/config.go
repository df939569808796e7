package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Worker     WorkerConfig
	Stripe     StripeConfig
	Syndicate  SyndicateConfig
	Blockchain BlockchainConfig
	Mint       MintConfig
	Invoice    InvoiceConfig
	JWT        JWTConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
	// Domain is the public origin used for checkout redirect URLs.
	Domain string
	// AllowedOrigins lists the origins browsers may call the API from.
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// QueueConfig holds job queue retry and visibility settings
type QueueConfig struct {
	Name                string
	MaxAttempts         int
	BackoffBase         time.Duration
	BackoffMax          time.Duration
	VisibilityTimeout   time.Duration
	CompletedRetention  time.Duration
	MaintenanceInterval time.Duration
}

// WorkerConfig holds worker pool settings
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MetricsPort  string
}

// StripeConfig holds payment provider credentials
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	// PriceCacheTTL of zero lists prices on every checkout
	PriceCacheTTL time.Duration
}

// SyndicateConfig holds minting/metadata service settings
type SyndicateConfig struct {
	APIKey          string
	ProjectID       string
	ContractAddress string
	ChainID         int64
	APIBaseURL      string
	MetadataBaseURL string
	TokenImageURL   string
	TokenTier       string
	RequestTimeout  time.Duration
}

// BlockchainConfig holds the RPC endpoint of the target network
type BlockchainConfig struct {
	RPCURL string
}

// MintConfig holds the polling policy used while finalizing a mint
type MintConfig struct {
	PollAttempts int
	PollDelay    time.Duration
}

// InvoiceConfig controls the optional per-invoice deduplication
type InvoiceConfig struct {
	DedupeEnabled bool
	DedupeTTL     time.Duration
}

// JWTConfig holds operator token settings
type JWTConfig struct {
	Secret         string
	OperatorExpiry time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	domain := strings.TrimRight(getEnv("YOUR_DOMAIN", "http://localhost:4242"), "/")
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "4242"),
			Env:            getEnv("SERVER_ENV", "development"),
			Domain:         domain,
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{domain}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stripe_minter"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Queue: QueueConfig{
			Name:                getEnv("QUEUE_NAME", "stripe-minter"),
			MaxAttempts:         getEnvAsInt("QUEUE_MAX_ATTEMPTS", 100),
			BackoffBase:         getEnvAsDuration("QUEUE_BACKOFF_BASE", 2*time.Second),
			BackoffMax:          getEnvAsDuration("QUEUE_BACKOFF_MAX", 0),
			VisibilityTimeout:   getEnvAsDuration("QUEUE_VISIBILITY_TIMEOUT", 10*time.Minute),
			CompletedRetention:  getEnvAsDuration("QUEUE_COMPLETED_RETENTION", 24*time.Hour),
			MaintenanceInterval: getEnvAsDuration("QUEUE_MAINTENANCE_INTERVAL", 5*time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 4),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
			MetricsPort:  getEnv("WORKER_METRICS_PORT", "9464"),
		},
		Stripe: StripeConfig{
			APIKey:        getEnv("STRIPE_API_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceCacheTTL: getEnvAsDuration("STRIPE_PRICE_CACHE_TTL", 5*time.Minute),
		},
		Syndicate: SyndicateConfig{
			APIKey:          getEnv("SYNDICATE_API_KEY", ""),
			ProjectID:       getEnv("SYNDICATE_PROJECT_ID", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
			ChainID:         int64(getEnvAsInt("CHAIN_ID", 80001)),
			APIBaseURL:      getEnv("SYNDICATE_API_URL", "https://api.syndicate.io"),
			MetadataBaseURL: getEnv("SYNDICATE_METADATA_URL", "https://metadata.syndicate.io"),
			TokenImageURL:   getEnv("TOKEN_IMAGE_URL", "https://i.ibb.co/tXf5vQz/cb46557190851a8f9518d18724b7be1d.webp"),
			TokenTier:       getEnv("TOKEN_TIER", "pro"),
			RequestTimeout:  getEnvAsDuration("SYNDICATE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Blockchain: BlockchainConfig{
			RPCURL: getEnv("BLOCKCHAIN_RPC_URL", "https://rpc-mumbai.maticvigil.com"),
		},
		Mint: MintConfig{
			PollAttempts: getEnvAsInt("MINT_POLL_ATTEMPTS", 10),
			PollDelay:    getEnvAsDuration("MINT_POLL_DELAY", 5*time.Second),
		},
		Invoice: InvoiceConfig{
			DedupeEnabled: getEnvAsBool("INVOICE_DEDUPE_ENABLED", false),
			DedupeTTL:     getEnvAsDuration("INVOICE_DEDUPE_TTL", 90*24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			OperatorExpiry: getEnvAsDuration("JWT_OPERATOR_EXPIRY", 12*time.Hour),
		},
	}
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	required := map[string]string{
		"STRIPE_API_KEY":        c.Stripe.APIKey,
		"STRIPE_WEBHOOK_SECRET": c.Stripe.WebhookSecret,
		"SYNDICATE_API_KEY":     c.Syndicate.APIKey,
		"SYNDICATE_PROJECT_ID":  c.Syndicate.ProjectID,
		"CONTRACT_ADDRESS":      c.Syndicate.ContractAddress,
		"JWT_SECRET":            c.JWT.Secret,
	}
	keys := []string{"STRIPE_API_KEY", "STRIPE_WEBHOOK_SECRET", "SYNDICATE_API_KEY", "SYNDICATE_PROJECT_ID", "CONTRACT_ADDRESS", "JWT_SECRET"}

	var errs []error
	for _, key := range keys {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is not defined in your environment", key))
		}
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, errors.New("QUEUE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
