/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// MaxFeeBasisPoints mirrors the engine's fee-rate ceiling; a configured rate
// above it is clamped at load time with a warning. The fee denominator in this
// system is 1000, so 1000 bps is 100%.
const MaxFeeBasisPoints = 1000

// Config holds all the configuration variables for the batchpay service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	LedgerAPIBaseURL     string `mapstructure:"LEDGER_API_BASE_URL"`
	LedgerAPIKey         string `mapstructure:"LEDGER_API_KEY"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`

	AdminAccount     string `mapstructure:"ADMIN_ACCOUNT"`
	TreasuryAccount  string `mapstructure:"TREASURY_ACCOUNT"`
	CustodialAccount string `mapstructure:"CUSTODIAL_ACCOUNT"`

	FeeBasisPoints                int64 `mapstructure:"FEE_BASIS_POINTS"`
	MinTransferAmount             int64 `mapstructure:"MIN_TRANSFER_AMOUNT"`
	VelocityWindowHours           int   `mapstructure:"VELOCITY_WINDOW_HOURS"`
	BatchSubmitRateLimitPerMinute int   `mapstructure:"BATCH_SUBMIT_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "batchpay:rate_limit")
	viper.SetDefault("FEE_BASIS_POINTS", 5)
	viper.SetDefault("MIN_TRANSFER_AMOUNT", 1)
	viper.SetDefault("VELOCITY_WINDOW_HOURS", 24)
	viper.SetDefault("BATCH_SUBMIT_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BATCHPAY_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_API_BASE_URL")
	_ = viper.BindEnv("LEDGER_API_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("ADMIN_ACCOUNT")
	_ = viper.BindEnv("TREASURY_ACCOUNT")
	_ = viper.BindEnv("CUSTODIAL_ACCOUNT")
	_ = viper.BindEnv("FEE_BASIS_POINTS")
	_ = viper.BindEnv("MIN_TRANSFER_AMOUNT")
	_ = viper.BindEnv("VELOCITY_WINDOW_HOURS")
	_ = viper.BindEnv("BATCH_SUBMIT_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "batchpay:rate_limit"
	}
	config.AdminAccount = strings.TrimSpace(config.AdminAccount)
	config.TreasuryAccount = strings.TrimSpace(config.TreasuryAccount)
	config.CustodialAccount = strings.TrimSpace(config.CustodialAccount)

	if config.FeeBasisPoints < 0 {
		log.Printf("level=warn component=config msg=\"negative fee rate configured; coercing to zero\" basis_points=%d", config.FeeBasisPoints)
		config.FeeBasisPoints = 0
	}
	if config.FeeBasisPoints > MaxFeeBasisPoints {
		log.Printf("level=warn component=config msg=\"fee rate too high; capping\" basis_points=%d cap=%d", config.FeeBasisPoints, MaxFeeBasisPoints)
		config.FeeBasisPoints = MaxFeeBasisPoints
	}
	if config.MinTransferAmount < 1 {
		config.MinTransferAmount = 1
	}
	if config.VelocityWindowHours <= 0 {
		config.VelocityWindowHours = 24
	}
	if config.BatchSubmitRateLimitPerMinute < 0 {
		config.BatchSubmitRateLimitPerMinute = 0
	}

	return
}
