package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env" validate:"oneof=development staging production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Redis configuration
	RedisURL         string        `json:"redis_url" validate:"required"`
	RedisPrefix      string        `json:"redis_prefix"`
	PublishMarkerTTL time.Duration `json:"publish_marker_ttl" validate:"gt=0"`

	// Secrets
	SecretsBackend string        `json:"secrets_backend" validate:"oneof=aws env"`
	AWSRegion      string        `json:"aws_region" validate:"required_if=SecretsBackend aws"`
	CredentialTTL  time.Duration `json:"credential_ttl" validate:"gt=0"`

	// AI configuration
	AISecretID    string        `json:"ai_secret_id" validate:"required"`
	AIModel       string        `json:"ai_model" validate:"required"`
	AIBaseURL     string        `json:"ai_base_url" validate:"required,url"`
	AITimeout     time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIMaxTokens   int           `json:"ai_max_tokens" validate:"gt=0"`
	AITemperature float64       `json:"ai_temperature" validate:"gte=0,lte=2"`
	TweetLanguage string        `json:"tweet_language" validate:"oneof=ar en"`

	// X / Twitter
	TwitterSecretID string        `json:"twitter_secret_id" validate:"required"`
	TwitterAPIURL   string        `json:"twitter_api_url" validate:"required,url"`
	PublishTimeout  time.Duration `json:"publish_timeout" validate:"gt=0"`
	PublishDueLimit int           `json:"publish_due_limit" validate:"gt=0"`

	// CMS content API
	CMSAPIURL string `json:"cms_api_url" validate:"omitempty,url"`

	// CloudFlare R2 Configuration
	R2Endpoint   string        `json:"r2_endpoint" validate:"omitempty,url"`
	R2AccessKey  string        `json:"r2_access_key"`
	R2SecretKey  string        `json:"r2_secret_key"`
	R2Bucket     string        `json:"r2_bucket"`
	UploadURLTTL time.Duration `json:"upload_url_ttl" validate:"gt=0"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from the process environment without validating it
func FromEnv() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:      getEnv("REDIS_PREFIX", "tweetdesk:"),
		PublishMarkerTTL: getEnvAsDuration("PUBLISH_MARKER_TTL", 7*24*time.Hour),

		SecretsBackend: strings.ToLower(getEnv("SECRETS_BACKEND", "env")),
		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		CredentialTTL:  getEnvAsDuration("CREDENTIAL_TTL", 5*time.Minute),

		AISecretID:    getEnv("AI_SECRET_ID", "gemini-api-key"),
		AIModel:       getEnv("AI_MODEL", "gemini-1.5-flash"),
		AIBaseURL:     getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		AITimeout:     getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		AIMaxTokens:   getEnvAsInt("AI_MAX_TOKENS", 1024),
		AITemperature: getEnvAsFloat("AI_TEMPERATURE", 0.8),
		TweetLanguage: strings.ToLower(getEnv("TWEET_LANGUAGE", "ar")),

		TwitterSecretID: getEnv("TWITTER_SECRET_ID", "twitter-credentials"),
		TwitterAPIURL:   getEnv("TWITTER_API_URL", "https://api.twitter.com"),
		PublishTimeout:  getEnvAsDuration("PUBLISH_TIMEOUT", 15*time.Second),
		PublishDueLimit: getEnvAsInt("PUBLISH_DUE_LIMIT", 25),

		CMSAPIURL: getEnv("CMS_API_URL", ""),

		R2Endpoint:   getEnv("R2_ENDPOINT", ""),
		R2AccessKey:  getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:  getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:     getEnv("R2_BUCKET", "media"),
		UploadURLTTL: getEnvAsDuration("UPLOAD_URL_TTL", 15*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

// Validate checks field constraints declared in the struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// UploadsEnabled reports whether R2 credentials are configured
func (c *Config) UploadsEnabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
