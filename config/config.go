// Package config reads service settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	// TIMEZONE must resolve in minimal containers without a zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	ServerPort string
	CORSOrigin string

	StoreDriver     string
	MongoURI        string
	MongoDBName     string
	TasksCollection string
	UsersCollection string

	JWTSecret   string
	JWTTTL      time.Duration
	BcryptCost  int
	AdminEmails []string
	// PasswordBlacklistFile is optional; empty disables the check.
	PasswordBlacklistFile string

	EmailHost   string
	EmailPort   int
	EmailSecure bool
	EmailUser   string
	EmailPass   string
	EmailFrom   string

	ReminderEnabled     bool
	ReminderInterval    time.Duration
	ReminderWindow      time.Duration
	ReminderSendTimeout time.Duration
	ReminderConcurrency int
	Timezone            *time.Location

	LogFile  string
	LogLevel string
}

// Load reads the given env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var errs []error
	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "3001"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),

		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "taskmanager"),
		TasksCollection: getEnv("MONGO_TASKS_COLLECTION", "tasks"),
		UsersCollection: getEnv("MONGO_USERS_COLLECTION", "users"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		AdminEmails: splitList(getEnv("ADMIN_EMAILS", "admin@example.com")),

		PasswordBlacklistFile: os.Getenv("PASSWORD_BLACKLIST_FILE"),

		EmailHost: getEnv("EMAIL_HOST", "smtp.example.com"),
		EmailUser: os.Getenv("EMAIL_USER"),
		EmailPass: os.Getenv("EMAIL_PASS"),
		EmailFrom: getEnv("EMAIL_FROM", "no-reply@example.com"),

		LogFile:  getEnv("LOG_FILE", "logs/tasks.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	cfg.JWTTTL = parseDuration("JWT_TTL", 24*time.Hour, &errs)
	cfg.BcryptCost = parseInt("BCRYPT_COST", 10, &errs)
	cfg.EmailPort = parseInt("EMAIL_PORT", 587, &errs)
	cfg.EmailSecure = parseBool("EMAIL_SECURE", false, &errs)
	cfg.ReminderEnabled = parseBool("REMINDER_ENABLED", true, &errs)
	cfg.ReminderInterval = parseDuration("REMINDER_INTERVAL", time.Hour, &errs)
	cfg.ReminderWindow = parseDuration("REMINDER_WINDOW", time.Hour, &errs)
	cfg.ReminderSendTimeout = parseDuration("REMINDER_SEND_TIMEOUT", 30*time.Second, &errs)
	cfg.ReminderConcurrency = parseInt("REMINDER_CONCURRENCY", 4, &errs)

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Timezone = loc

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.StoreDriver != StoreMongo && c.StoreDriver != StoreMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver))
	}
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT is not set"))
	}
	if c.ReminderInterval <= 0 || c.ReminderWindow <= 0 || c.ReminderSendTimeout <= 0 {
		errs = append(errs, errors.New("reminder durations must be positive"))
	}
	if c.ReminderConcurrency < 1 {
		errs = append(errs, errors.New("REMINDER_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseInt(key string, fallback int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func parseBool(key string, fallback bool, errs *[]error) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func parseDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
