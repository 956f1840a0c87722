package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// MaxSlotCapacity bounds SLOT_CAPACITY; no dispenser model has more compartments.
const MaxSlotCapacity = 12

// Config holds application configuration
type Config struct {
	Env        string
	ServerPort string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	// SlotCapacity is the number of physical compartments per dispenser.
	SlotCapacity int
	LockTimeout  time.Duration
	Location     *time.Location

	JWTSecret string
	TokenTTL  time.Duration
	HashCost  int

	DrugAPIBaseURL      string
	DrugAPIKey          string
	DrugAPIClientID     string
	DrugAPIClientSecret string
	DrugAPITokenURL     string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	RefillThreshold  int
	RefillDigestCron string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:        getEnv("ENV", "development"),
		ServerPort: getEnv("PORT", "8080"),

		DatabaseType: getEnv("DB_TYPE", "sqlite"),
		DatabasePath: getEnv("DB_PATH", "./familydose.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		SlotCapacity: getEnvInt("SLOT_CAPACITY", 6),
		LockTimeout:  getEnvDuration("LOCK_TIMEOUT", 2*time.Second),
		Location:     getEnvLocation("TIMEZONE"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		HashCost:  getEnvInt("HASH_COST", bcrypt.DefaultCost),

		DrugAPIBaseURL:      getEnv("DRUG_API_BASE_URL", ""),
		DrugAPIKey:          getEnv("DRUG_API_KEY", ""),
		DrugAPIClientID:     getEnv("DRUG_API_CLIENT_ID", ""),
		DrugAPIClientSecret: getEnv("DRUG_API_CLIENT_SECRET", ""),
		DrugAPITokenURL:     getEnv("DRUG_API_TOKEN_URL", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "FamilyDose"),

		RefillThreshold:  getEnvInt("REFILL_THRESHOLD", 5),
		RefillDigestCron: getEnv("REFILL_DIGEST_CRON", "0 8 * * *"),
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.SlotCapacity < 1 || c.SlotCapacity > MaxSlotCapacity {
		return fmt.Errorf("SLOT_CAPACITY must be between 1 and %d, got %d", MaxSlotCapacity, c.SlotCapacity)
	}
	if c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost {
		return fmt.Errorf("HASH_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.HashCost)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.RefillThreshold < 0 {
		return fmt.Errorf("REFILL_THRESHOLD must not be negative, got %d", c.RefillThreshold)
	}
	return nil
}

// IsProduction reports whether ENV selects production behaviour
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvLocation(key string) *time.Location {
	value := os.Getenv(key)
	if value == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		log.Printf("Warning: unknown %s=%q, using local time", key, value)
		return time.Local
	}
	return loc
}
