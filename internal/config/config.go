package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string `toml:"port"`
	Env  string `toml:"env"`

	// Database
	DBDriver   string `toml:"db_driver"`
	DBHost     string `toml:"db_host"`
	DBPort     string `toml:"db_port"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBName     string `toml:"db_name"`
	DBSSLMode  string `toml:"db_sslmode"`
	SQLitePath string `toml:"sqlite_path"`

	// Pipeline
	PipelineAPIKey string `toml:"pipeline_api_key"`

	// Ledger
	Timezone            string `toml:"timezone"`
	ReminderHorizonDays int    `toml:"reminder_horizon_days"`

	// Scheduler worker
	SchedulerInterval string `toml:"scheduler_interval"`
	SchedulerWorkers  int    `toml:"scheduler_workers"`
	CatchUpLimit      int    `toml:"catch_up_limit"`
}

var appConfig *Config

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:                "8080",
		Env:                 "development",
		DBDriver:            "postgres",
		DBHost:              "localhost",
		DBPort:              "5432",
		DBUser:              "tally",
		DBPassword:          "tally",
		DBName:              "tally",
		DBSSLMode:           "disable",
		SQLitePath:          "tally.db",
		Timezone:            "Local",
		ReminderHorizonDays: 7,
		SchedulerInterval:   "1h",
		SchedulerWorkers:    1,
		CatchUpLimit:        366,
	}
}

// Load builds the configuration from, in increasing priority, the built-in
// defaults, the TOML file named by TALLY_CONFIG (default tally.toml, skipped
// if missing), a .env file and the process environment.
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := Defaults()

	path := getEnv("TALLY_CONFIG", "tally.toml")
	if err := loadFile(config, path); err != nil {
		return nil, err
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if _, err := time.ParseDuration(c.SchedulerInterval); err != nil {
		return fmt.Errorf("invalid SCHEDULER_INTERVAL %q: %w", c.SchedulerInterval, err)
	}
	if c.ReminderHorizonDays < 1 {
		return fmt.Errorf("REMINDER_HORIZON_DAYS must be at least 1, got %d", c.ReminderHorizonDays)
	}
	if c.SchedulerWorkers < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1, got %d", c.SchedulerWorkers)
	}
	if c.CatchUpLimit < 1 {
		return fmt.Errorf("CATCH_UP_LIMIT must be at least 1, got %d", c.CatchUpLimit)
	}
	return nil
}

// Location returns the zone used for month and day boundaries.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Interval returns the scheduler loop interval.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.SchedulerInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

func loadFile(config *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.PipelineAPIKey = getEnv("PIPELINE_API_KEY", c.PipelineAPIKey)

	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.ReminderHorizonDays = getEnvInt("REMINDER_HORIZON_DAYS", c.ReminderHorizonDays)

	c.SchedulerInterval = getEnv("SCHEDULER_INTERVAL", c.SchedulerInterval)
	c.SchedulerWorkers = getEnvInt("SCHEDULER_WORKERS", c.SchedulerWorkers)
	c.CatchUpLimit = getEnvInt("CATCH_UP_LIMIT", c.CatchUpLimit)
}

// getEnv retrieves an environment variable or returns a default value
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
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}
