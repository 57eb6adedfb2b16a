package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Backoff strategies for the auto-deduct scheduler.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Config holds application configuration. It is constructed once at process
// start and passed into each component's constructor; business logic never
// reads ambient environment state.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	JWTSecret         string
	JWTExpiryDuration time.Duration
	JWTIssuer         string

	DefaultCurrency string

	// Lending policy knobs. The 75%/70% eligibility ratios are fixed business
	// rules and live in the loan service; the operational thresholds below are
	// deployment-tunable.
	SecondFactorThreshold decimal.Decimal // eligibility amounts above this require a second factor
	MonthlyBorrowCap      decimal.Decimal // max principal a borrower may request per rolling 30 days
	CoolOffWindow         time.Duration   // min delay between a borrower's loan requests

	// Auto-deduct scheduler.
	MaxAutoRetries      int
	AutoRetryBackoff    time.Duration
	BackoffStrategy     string // "fixed" or "exponential"
	AutoDeductBatchSize int
	AutoDeductInterval  time.Duration

	RateLimit string // ulule/limiter formatted rate, e.g. "120-M"
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "1h")
	viper.SetDefault("JWT_ISSUER", "stashpal-backend")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("SECOND_FACTOR_THRESHOLD", "1000")
	viper.SetDefault("MONTHLY_BORROW_CAP", "5000")
	viper.SetDefault("COOL_OFF_WINDOW", "72h")
	viper.SetDefault("MAX_AUTO_RETRIES", 3)
	viper.SetDefault("AUTO_RETRY_BACKOFF", "24h")
	viper.SetDefault("BACKOFF_STRATEGY", "fixed")
	viper.SetDefault("AUTO_DEDUCT_BATCH_SIZE", 50)
	viper.SetDefault("AUTO_DEDUCT_INTERVAL", "1h")
	viper.SetDefault("RATE_LIMIT", "120-M")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if !cfg.IsProduction && cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	var err error
	cfg.JWTExpiryDuration, err = time.ParseDuration(viper.GetString("JWT_EXPIRY_DURATION"))
	if err != nil {
		cfg.JWTExpiryDuration = time.Hour
		log.Printf("Warning: Invalid JWT_EXPIRY_DURATION, defaulting to %s.\n", cfg.JWTExpiryDuration)
	}

	cfg.DefaultCurrency = viper.GetString("DEFAULT_CURRENCY")

	cfg.SecondFactorThreshold, err = decimal.NewFromString(viper.GetString("SECOND_FACTOR_THRESHOLD"))
	if err != nil {
		cfg.SecondFactorThreshold = decimal.NewFromInt(1000)
		log.Printf("Warning: Invalid SECOND_FACTOR_THRESHOLD, defaulting to %s.\n", cfg.SecondFactorThreshold)
	}
	cfg.MonthlyBorrowCap, err = decimal.NewFromString(viper.GetString("MONTHLY_BORROW_CAP"))
	if err != nil {
		cfg.MonthlyBorrowCap = decimal.NewFromInt(5000)
		log.Printf("Warning: Invalid MONTHLY_BORROW_CAP, defaulting to %s.\n", cfg.MonthlyBorrowCap)
	}
	cfg.CoolOffWindow, err = time.ParseDuration(viper.GetString("COOL_OFF_WINDOW"))
	if err != nil {
		cfg.CoolOffWindow = 72 * time.Hour
		log.Printf("Warning: Invalid COOL_OFF_WINDOW, defaulting to %s.\n", cfg.CoolOffWindow)
	}

	cfg.MaxAutoRetries = viper.GetInt("MAX_AUTO_RETRIES")
	cfg.AutoRetryBackoff, err = time.ParseDuration(viper.GetString("AUTO_RETRY_BACKOFF"))
	if err != nil {
		cfg.AutoRetryBackoff = 24 * time.Hour
		log.Printf("Warning: Invalid AUTO_RETRY_BACKOFF, defaulting to %s.\n", cfg.AutoRetryBackoff)
	}
	cfg.BackoffStrategy = viper.GetString("BACKOFF_STRATEGY")
	cfg.AutoDeductBatchSize = viper.GetInt("AUTO_DEDUCT_BATCH_SIZE")
	cfg.AutoDeductInterval, err = time.ParseDuration(viper.GetString("AUTO_DEDUCT_INTERVAL"))
	if err != nil {
		cfg.AutoDeductInterval = time.Hour
		log.Printf("Warning: Invalid AUTO_DEDUCT_INTERVAL, defaulting to %s.\n", cfg.AutoDeductInterval)
	}

	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	return cfg, nil
}
