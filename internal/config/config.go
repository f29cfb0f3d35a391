// Package config loads per-binary settings from the environment. An optional
// .env file is read first so local runs need no exported variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// CustomerAPI configures cmd/customerapi. Empty infra fields disable the
// corresponding capability and the binary degrades to in-memory equivalents.
type CustomerAPI struct {
	HTTPAddr     string
	InternalAddr string

	PostgresDSN             string
	RedisAddr               string
	NATSURL                 string
	GoogleMapsAPIKey        string
	FirebaseDatabaseURL     string
	FirebaseCredentialsFile string
	DirectoryAddr           string
	JWTSecret               string

	SearchTimeout  time.Duration
	PollInterval   time.Duration
	IdempotencyTTL time.Duration

	SurgeMultiplier float64

	QuoteRateRPS     float64
	QuoteRateBurst   float64
	BookingRateRPS   float64
	BookingRateBurst float64

	OutboxPoll  time.Duration
	OutboxBatch int
	OutboxRetry int
}

// LoadCustomerAPI reads the customer API configuration.
func LoadCustomerAPI() CustomerAPI {
	loadDotenv()
	return CustomerAPI{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		InternalAddr: getenv("INTERNAL_HTTP_ADDR", ":8081"),

		PostgresDSN:             firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		NATSURL:                 os.Getenv("NATS_URL"),
		GoogleMapsAPIKey:        os.Getenv("GOOGLE_MAPS_API_KEY"),
		FirebaseDatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		DirectoryAddr:           os.Getenv("DRIVER_DIRECTORY_ADDR"),
		JWTSecret:               os.Getenv("JWT_SECRET"),

		SearchTimeout:  time.Duration(parseIntEnv("SEARCH_TIMEOUT_SEC", 120)) * time.Second,
		PollInterval:   time.Duration(parseIntEnv("POLL_INTERVAL_SEC", 2)) * time.Second,
		IdempotencyTTL: time.Duration(parseIntEnv("IDEMPOTENCY_TTL_HOURS", 24)) * time.Hour,

		SurgeMultiplier: parseFloatEnv("SURGE_MULTIPLIER", 1.0),

		QuoteRateRPS:     parseFloatEnv("QUOTE_RATE_RPS", 5),
		QuoteRateBurst:   parseFloatEnv("QUOTE_RATE_BURST", 10),
		BookingRateRPS:   parseFloatEnv("BOOKING_RATE_RPS", 1),
		BookingRateBurst: parseFloatEnv("BOOKING_RATE_BURST", 3),

		OutboxPoll:  time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch: parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry: parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

// DriverDirectory configures cmd/driverdirectory.
type DriverDirectory struct {
	GRPCAddr string
	HTTPAddr string
	SeedDemo bool
}

// LoadDriverDirectory reads the driver directory configuration.
func LoadDriverDirectory() DriverDirectory {
	loadDotenv()
	return DriverDirectory{
		GRPCAddr: getenv("GRPC_ADDR", ":9090"),
		HTTPAddr: getenv("HTTP_ADDR", ":8082"),
		SeedDemo: parseBoolEnv("SEED_DEMO_FLEET", true),
	}
}

// APIGateway configures cmd/apigateway.
type APIGateway struct {
	HTTPAddr    string
	UpstreamURL string
	RedisAddr   string

	ReadRPS    float64
	ReadBurst  float64
	WriteRPS   float64
	WriteBurst float64
}

// LoadAPIGateway reads the gateway configuration.
func LoadAPIGateway() APIGateway {
	loadDotenv()
	return APIGateway{
		HTTPAddr:    getenv("HTTP_ADDR", ":8088"),
		UpstreamURL: getenv("UPSTREAM_URL", "http://localhost:8080"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		ReadRPS:     parseFloatEnv("RATE_READ_RPS", 50),
		ReadBurst:   parseFloatEnv("RATE_READ_BURST", 100),
		WriteRPS:    parseFloatEnv("RATE_WRITE_RPS", 10),
		WriteBurst:  parseFloatEnv("RATE_WRITE_BURST", 20),
	}
}

func loadDotenv() {
	// missing .env is the normal case outside local dev
	_ = godotenv.Load()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}
