package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by PSYCHE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("PSYCHE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// LLMProvider returns the configured extraction provider.
// Valid values: openai, anthropic, mock. Defaults to "openai".
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMAPIKey returns the API key for the configured extraction provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock, none. Defaults to "none"; the engine runs
// fine without embeddings, recall is just unavailable.
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "none"
	}
	return p
}

func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock", "none":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RateLimitRPS returns the HTTP requests-per-second limit. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for HTTP rate limiting. Defaults to 20.
func RateLimitBurst() int {
	burst := intEnv("RATE_LIMIT_BURST", 20)
	if burst <= 0 {
		return 20
	}
	return burst
}

// Engine tunables. All thresholds below are configuration, not contracts;
// the engine only requires their ordering to hold.

// CriticalEnergyFloor is the energy below which nothing is processed.
func CriticalEnergyFloor() int {
	return intEnv("CRITICAL_ENERGY_FLOOR", 5)
}

// HeavyTopicEnergyThreshold is the energy below which high-impact
// observations require explicit consent.
func HeavyTopicEnergyThreshold() int {
	return intEnv("HEAVY_TOPIC_ENERGY_THRESHOLD", 50)
}

// CostTolerance is how far estimated cost may exceed current energy before
// the observation is deferred.
func CostTolerance() int {
	return intEnv("COST_TOLERANCE", 5)
}

// HourlyExtractionCeiling caps extractions per trailing hour.
func HourlyExtractionCeiling() int {
	return intEnv("HOURLY_EXTRACTION_CEILING", 10)
}

// RecoveryInterval is how often the recovery worker ticks.
func RecoveryInterval() time.Duration {
	return durationEnv("RECOVERY_INTERVAL", 10*time.Minute)
}

// RecoveryAmount is the energy restored per recovery tick.
func RecoveryAmount() int {
	return intEnv("RECOVERY_AMOUNT", 5)
}

// DrainEnergyThreshold is the energy above which a recovery tick also
// drains the extraction queue.
func DrainEnergyThreshold() int {
	return intEnv("DRAIN_ENERGY_THRESHOLD", 60)
}

// DrainBatchLimit caps how many queue entries one drain pass may process.
func DrainBatchLimit() int {
	return intEnv("DRAIN_BATCH_LIMIT", 3)
}

// MaturationInterval is how often the maturation sweep runs.
func MaturationInterval() time.Duration {
	return durationEnv("MATURATION_INTERVAL", 6*time.Hour)
}
