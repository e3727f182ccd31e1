package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Upstream completions API (OpenAI-compatible, OpenRouter by default)
	UpstreamBaseURL        string
	UpstreamAPIKey         string
	UpstreamTimeoutSeconds int

	// Auth
	ValidatorType     string // "jwk" or "firebase"
	JWTJWKSURL        string
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Broadcast
	NatsURL string

	// Model catalog
	CatalogTTL          time.Duration
	CatalogWarmSchedule string // cron spec, empty disables warm refresh

	// Rate Limiting
	RateLimitEnabled           bool
	RateLimitMessagesPerMinute int
	RateLimitBurst             int

	// Worker Pool
	RequestTrackingWorkerPoolSize int
	RequestTrackingBufferSize     int
	RequestTrackingTimeoutSeconds int

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string

	// Timezone used for the system prompt date and fallback titles.
	Timezone string

	Chat            *ChatConfig            `yaml:"chat"`
	TitleGeneration *TitleGenerationConfig `yaml:"title_generation"`
}

// ChatConfig holds prompt text and defaults for the chat dispatcher.
type ChatConfig struct {
	DefaultModel    string  `yaml:"default_model"`
	FreeModelSuffix string  `yaml:"free_model_suffix"`
	Temperature     float64 `yaml:"temperature"`
}

// TitleGenerationConfig holds the prompts used to synthesize conversation titles.
type TitleGenerationConfig struct {
	Prompt          string  `yaml:"prompt"`
	InsistPrompt    string  `yaml:"insist_prompt"`
	MaxAttempts     int     `yaml:"max_attempts"`
	BaseTemperature float64 `yaml:"base_temperature"`
	TemperatureStep float64 `yaml:"temperature_step"`
	MinLength       int     `yaml:"min_length"`
	MaxLength       int     `yaml:"max_length"`
	FallbackPrefix  string  `yaml:"fallback_prefix"`
	// AutoGenerate queues a title after the first exchange instead of waiting for the client.
	AutoGenerate bool `yaml:"auto_generate"`
	Workers      int  `yaml:"workers"`
}

const (
	DefaultModel           = "meta-llama/llama-3.2-11b-vision-instruct:free"
	DefaultFreeModelSuffix = ":free"
	DefaultTemperature     = 0.7
	DefaultUpstreamBaseURL = "https://openrouter.ai/api/v1"
)

var (
	AppConfig *Config

	DefaultCatalogTTL = time.Hour
)

// DefaultChatConfig returns the chat settings used when the config file omits them.
func DefaultChatConfig() *ChatConfig {
	return &ChatConfig{
		DefaultModel:    DefaultModel,
		FreeModelSuffix: DefaultFreeModelSuffix,
		Temperature:     DefaultTemperature,
	}
}

// DefaultTitleGenerationConfig returns the title prompts used when the config file omits them.
func DefaultTitleGenerationConfig() *TitleGenerationConfig {
	return &TitleGenerationConfig{
		Prompt:          "You must create a short title (3 to 5 words) for this conversation. IMPORTANT: Reply ONLY with the title itself, without any other text, without quotes, without periods.",
		InsistPrompt:    "This is very important. SAY NOTHING BUT THE TITLE.",
		MaxAttempts:     3,
		BaseTemperature: 0.2,
		TemperatureStep: 0.1,
		MinLength:       3,
		MaxLength:       50,
		FallbackPrefix:  "Conversation of",
		Workers:         2,
	}
}

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Database
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", "postgres://localhost/enchanted_chat?sslmode=disable"),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 15),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		// Upstream
		UpstreamBaseURL:        strings.TrimSuffix(getEnvOrDefault("OPENROUTER_BASE_URL", DefaultUpstreamBaseURL), "/"),
		UpstreamAPIKey:         strings.TrimSpace(getEnvOrDefault("OPENROUTER_API_KEY", "")),
		UpstreamTimeoutSeconds: getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", 60),

		// Validator
		ValidatorType:     getEnvOrDefault("VALIDATOR_TYPE", "jwk"),
		JWTJWKSURL:        getEnvOrDefault("JWT_JWKS_URL", ""),
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		// NATS
		NatsURL: getEnvOrDefault("NATS_URL", ""),

		// Model catalog
		CatalogTTL:          getEnvAsDuration("CATALOG_TTL", DefaultCatalogTTL),
		CatalogWarmSchedule: getEnvOrDefault("CATALOG_WARM_SCHEDULE", ""),

		// Rate Limiting
		RateLimitEnabled:           getEnvOrDefault("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitMessagesPerMinute: getEnvAsInt("RATE_LIMIT_MESSAGES_PER_MINUTE", 20),
		RateLimitBurst:             getEnvAsInt("RATE_LIMIT_BURST", 5),

		// Worker Pool
		RequestTrackingWorkerPoolSize: getEnvAsInt("REQUEST_TRACKING_WORKER_POOL_SIZE", 4),
		RequestTrackingBufferSize:     getEnvAsInt("REQUEST_TRACKING_BUFFER_SIZE", 1000),
		RequestTrackingTimeoutSeconds: getEnvAsInt("REQUEST_TRACKING_TIMEOUT_SECONDS", 30),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		Timezone: getEnvOrDefault("APP_TIMEZONE", "UTC"),
	}

	// Prompts and chat defaults come from the config file; a missing file means built-in defaults.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %s not found, using built-in chat defaults", configFilePath)
	case err != nil:
		log.Fatalf("Failed to open config file: %v", err)
	default:
		log.Printf("Loading config file: %v", configFilePath)
		err = LoadConfigFile(configFile, AppConfig)
		configFile.Close()
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	ApplyDefaults(AppConfig)

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if AppConfig.UpstreamAPIKey == "" {
		log.Println("Warning: upstream API key is missing. Please set OPENROUTER_API_KEY environment variable.")
	}

	if AppConfig.ValidatorType == "jwk" && AppConfig.JWTJWKSURL == "" {
		log.Println("Warning: JWT_JWKS_URL is empty, tokens are parsed WITHOUT signature verification (development mode).")
	}
}

// ApplyDefaults fills the YAML-backed sections and zero-valued fields that must not stay empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Chat == nil {
		cfg.Chat = DefaultChatConfig()
	} else {
		defaults := DefaultChatConfig()
		if cfg.Chat.DefaultModel == "" {
			cfg.Chat.DefaultModel = defaults.DefaultModel
		}
		if cfg.Chat.FreeModelSuffix == "" {
			cfg.Chat.FreeModelSuffix = defaults.FreeModelSuffix
		}
		if cfg.Chat.Temperature == 0 {
			cfg.Chat.Temperature = defaults.Temperature
		}
	}

	if cfg.TitleGeneration == nil {
		cfg.TitleGeneration = DefaultTitleGenerationConfig()
	} else {
		defaults := DefaultTitleGenerationConfig()
		tg := cfg.TitleGeneration
		tg.Prompt = strings.TrimSpace(tg.Prompt)
		tg.InsistPrompt = strings.TrimSpace(tg.InsistPrompt)
		if tg.Prompt == "" {
			tg.Prompt = defaults.Prompt
		}
		if tg.InsistPrompt == "" {
			tg.InsistPrompt = defaults.InsistPrompt
		}
		if tg.MaxAttempts == 0 {
			tg.MaxAttempts = defaults.MaxAttempts
		}
		if tg.BaseTemperature == 0 {
			tg.BaseTemperature = defaults.BaseTemperature
		}
		if tg.TemperatureStep == 0 {
			tg.TemperatureStep = defaults.TemperatureStep
		}
		if tg.MinLength == 0 {
			tg.MinLength = defaults.MinLength
		}
		if tg.MaxLength == 0 {
			tg.MaxLength = defaults.MaxLength
		}
		if tg.FallbackPrefix == "" {
			tg.FallbackPrefix = defaults.FallbackPrefix
		}
		if tg.Workers == 0 {
			tg.Workers = defaults.Workers
		}
	}

	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = DefaultCatalogTTL
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.Chat == nil || c.TitleGeneration == nil {
		return errors.New("chat and title_generation sections must be set")
	}

	if c.TitleGeneration.MaxAttempts < 1 {
		return fmt.Errorf("title_generation.max_attempts must be >= 1, got %d", c.TitleGeneration.MaxAttempts)
	}

	if c.TitleGeneration.MinLength > c.TitleGeneration.MaxLength {
		return fmt.Errorf("title_generation.min_length (%d) exceeds max_length (%d)",
			c.TitleGeneration.MinLength, c.TitleGeneration.MaxLength)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}

	switch c.ValidatorType {
	case "jwk", "firebase":
	default:
		return fmt.Errorf("validator type must be either 'firebase' or 'jwk', got %q", c.ValidatorType)
	}

	// Unsigned tokens are only accepted outside release mode.
	if c.ValidatorType == "jwk" && c.JWTJWKSURL == "" && c.GinMode == "release" {
		return errors.New("JWT_JWKS_URL is required when GIN_MODE=release")
	}

	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
