package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"SERVER_PORT", "CORS_ORIGIN", "STORE_DRIVER", "MONGO_URI", "MONGO_DB_NAME",
	"MONGO_TASKS_COLLECTION", "MONGO_USERS_COLLECTION", "JWT_SECRET", "JWT_TTL",
	"BCRYPT_COST", "ADMIN_EMAILS", "PASSWORD_BLACKLIST_FILE", "EMAIL_HOST", "EMAIL_PORT", "EMAIL_SECURE",
	"EMAIL_USER", "EMAIL_PASS", "EMAIL_FROM", "REMINDER_ENABLED", "REMINDER_INTERVAL",
	"REMINDER_WINDOW", "REMINDER_SEND_TIMEOUT", "REMINDER_CONCURRENCY", "TIMEZONE",
	"LOG_FILE", "LOG_LEVEL",
}

// clearEnv unsets every key Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		key := key
		if v, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.ServerPort)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "tasks", cfg.TasksCollection)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, []string{"admin@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 587, cfg.EmailPort)
	assert.False(t, cfg.EmailSecure)
	assert.True(t, cfg.ReminderEnabled)
	assert.Equal(t, time.Hour, cfg.ReminderInterval)
	assert.Equal(t, time.Hour, cfg.ReminderWindow)
	assert.Equal(t, 30*time.Second, cfg.ReminderSendTimeout)
	assert.Equal(t, 4, cfg.ReminderConcurrency)
	assert.Equal(t, time.UTC, cfg.Timezone)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "secret")
	os.Setenv("STORE_DRIVER", "Memory")
	os.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com,,")
	os.Setenv("REMINDER_INTERVAL", "15m")
	os.Setenv("EMAIL_SECURE", "true")
	os.Setenv("TIMEZONE", "Europe/Belgrade")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval)
	assert.True(t, cfg.EmailSecure)
	assert.Equal(t, "Europe/Belgrade", cfg.Timezone.String())
}

func TestLoad_CollectsErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("STORE_DRIVER", "postgres")
	os.Setenv("EMAIL_PORT", "smtp")
	os.Setenv("REMINDER_WINDOW", "-1h")
	os.Setenv("TIMEZONE", "Nowhere/City")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "STORE_DRIVER", "EMAIL_PORT", "reminder durations", "TIMEZONE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nSERVER_PORT=4000\n"), 0600))
	os.Setenv("SERVER_PORT", "5000")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "5000", cfg.ServerPort)
}
