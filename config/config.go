package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MongoURI string

	// Market session window, minutes-of-day in the configured timezone
	Timezone          string
	MarketOpenHour    int
	MarketOpenMinute  int
	MarketCloseHour   int
	MarketCloseMinute int

	// Job cadence and defaults
	AlertCheckIntervalMinutes int
	IndicatorCalcTime         string // "HH:MM", after market close
	RetentionSweepTime        string // "HH:MM", Sundays
	DefaultCooldownMinutes    int
	IndicatorRetentionDays    int

	Environment string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "stock_alerts"),

		MongoURI: getEnv("MONGODB_URI", ""),

		Timezone:          getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
		MarketOpenHour:    getEnvInt("MARKET_OPEN_HOUR", 9),
		MarketOpenMinute:  getEnvInt("MARKET_OPEN_MINUTE", 15),
		MarketCloseHour:   getEnvInt("MARKET_CLOSE_HOUR", 15),
		MarketCloseMinute: getEnvInt("MARKET_CLOSE_MINUTE", 30),

		AlertCheckIntervalMinutes: getEnvInt("ALERT_CHECK_INTERVAL_MINUTES", 1),
		IndicatorCalcTime:         getEnv("INDICATOR_CALC_TIME", "16:30"),
		RetentionSweepTime:        getEnv("RETENTION_SWEEP_TIME", "01:00"),
		DefaultCooldownMinutes:    getEnvInt("DEFAULT_COOLDOWN_MINUTES", 60),
		IndicatorRetentionDays:    getEnvInt("INDICATOR_RETENTION_DAYS", 365),

		Environment: getEnv("ENVIRONMENT", "development"),
	}

	AppConfig = config
	return config, nil
}

// Location resolves the configured market timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// InitDB initializes the database connection
func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=%s",
		AppConfig.DBHost,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBPort,
		AppConfig.Timezone,
	)

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	DB = db
	return db, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
