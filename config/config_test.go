package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "hash")
	t.Setenv("PORT", "")
	t.Setenv("SERVICE_PORT", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, "hash", cfg.Telegram.APIHash)
	assert.Equal(t, "sessions", cfg.Telegram.SessionDir)
	assert.Equal(t, SessionBackendFile, cfg.Telegram.SessionBackend)
	assert.Equal(t, 60*time.Second, cfg.Telegram.RequestTimeout)
	assert.Equal(t, "database.json", cfg.Store.Path)
	assert.Zero(t, cfg.Store.PendingSessionTTL)
	assert.Equal(t, 10*time.Second, cfg.Worker.StopTimeout)
	assert.Equal(t, float64(1), cfg.Worker.ReactionRate)
	assert.Equal(t, 5, cfg.Worker.ReactionBurst)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "5000", cfg.Service.Port)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVICE_PORT", "6000")
	t.Setenv("PENDING_SESSION_TTL", "15m")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SESSION_BACKEND", "Postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "6000", cfg.Service.Port)
	assert.Equal(t, 15*time.Minute, cfg.Store.PendingSessionTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, SessionBackendPostgres, cfg.Telegram.SessionBackend)

	t.Setenv("PORT", "7000")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Service.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "api id", key: "TELEGRAM_API_ID", val: "abc"},
		{name: "missing api hash", key: "TELEGRAM_API_HASH", val: ""},
		{name: "request timeout", key: "TELEGRAM_REQUEST_TIMEOUT", val: "soon"},
		{name: "pending ttl", key: "PENDING_SESSION_TTL", val: "1 day"},
		{name: "backend", key: "SESSION_BACKEND", val: "redis"},
		{name: "rate", key: "REACTION_RATE", val: "0"},
		{name: "burst", key: "REACTION_BURST", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("API_HASH", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_URLs(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.GetDSN())
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.GetURL())
}
