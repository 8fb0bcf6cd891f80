package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Issuer claims recognized by the credential verifier.
const (
	IssuerAccess   = "ice.io/access"
	IssuerMetadata = "ice.io/metadata"
)

type Config struct {
	HTTP      HTTPConfig
	JWT       JWTConfig
	Provider  ProviderConfig
	Redis     RedisConfig
	S3        S3Config
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Review    ReviewConfig
	Webhook   WebhookConfig
}

type HTTPConfig struct {
	Host string
	Port int
}

type JWTConfig struct {
	Secret string // symmetric secret for ice.io/access and ice.io/metadata tokens
}

// ProviderConfig points at the external identity provider used to verify
// tokens that were not minted by the internal issuer.
type ProviderConfig struct {
	VerifyURL string // token verification endpoint (e.g. https://provider.example.com/v1/verify)
	Audience  string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type S3Config struct {
	Endpoint  string // base endpoint, MinIO compatible (e.g. http://minio:9000)
	Region    string
	Bucket    string
	AccessKey string // MINIO_ROOT_USER
	SecretKey string // MINIO_ROOT_PASSWORD
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	IndexPath    string // Path to persist the face HNSW index (optional, rebuilt on startup if empty)
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

// ReviewConfig holds duplicate-review tuning. Defaults come from the
// embedded defaults.yaml and can be overridden per environment.
type ReviewConfig struct {
	MaxDistance  float64 `yaml:"max_distance"`   // similarity search cutoff
	PhotoMaxSize int     `yaml:"photo_max_size"` // review photos are downscaled to this before extraction
}

// WebhookConfig holds the outbound callback destinations and retry policy.
type WebhookConfig struct {
	AccountUpdatedURL string        `yaml:"-"`
	MigrateLoginURL   string        `yaml:"-"`
	APIKey            string        `yaml:"-"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	MaxTries          int           `yaml:"max_tries"`
	MaxElapsed        time.Duration `yaml:"max_elapsed"`         // account-updated wall-clock bound
	MigrateMaxElapsed time.Duration `yaml:"migrate_max_elapsed"` // phone-migration wall-clock bound
	Timeout           time.Duration `yaml:"timeout"`             // per-attempt HTTP timeout
}

type defaults struct {
	Review  ReviewConfig  `yaml:"review"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration parses a Go duration string (e.g. "100ms", "25s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		HTTP: HTTPConfig{
			Host: os.Getenv("HTTP_HOST"),
			Port: envInt("HTTP_PORT", 8080),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		Provider: ProviderConfig{
			VerifyURL: os.Getenv("PROVIDER_VERIFY_URL"),
			Audience:  os.Getenv("PROVIDER_AUDIENCE"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    os.Getenv("S3_REGION"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			IndexPath:    os.Getenv("HNSW_INDEX_PATH"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Review: ReviewConfig{
			MaxDistance:  envFloat("REVIEW_MAX_DISTANCE", def.Review.MaxDistance),
			PhotoMaxSize: envInt("REVIEW_PHOTO_MAX_SIZE", def.Review.PhotoMaxSize),
		},
		Webhook: WebhookConfig{
			AccountUpdatedURL: os.Getenv("ACCOUNT_UPDATED_CALLBACK_URL"),
			MigrateLoginURL:   os.Getenv("MIGRATE_PHONE_LOGIN_CALLBACK_URL"),
			APIKey:            os.Getenv("ACCOUNT_UPDATED_SECRET"),
			RetryInterval:     envDuration("WEBHOOK_RETRY_INTERVAL", def.Webhook.RetryInterval),
			MaxTries:          envInt("WEBHOOK_MAX_TRIES", def.Webhook.MaxTries),
			MaxElapsed:        envDuration("WEBHOOK_MAX_ELAPSED", def.Webhook.MaxElapsed),
			MigrateMaxElapsed: envDuration("WEBHOOK_MIGRATE_MAX_ELAPSED", def.Webhook.MigrateMaxElapsed),
			Timeout:           envDuration("WEBHOOK_TIMEOUT", def.Webhook.Timeout),
		},
	}
}
