package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "UGX", cfg.Currency)
	assert.Equal(t, "256", cfg.CountryCode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Payments.PendingTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Payments.PollInterval)
	assert.True(t, cfg.Payments.Airtel.Enabled)
	assert.Equal(t, "restaurant_events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 256, cfg.RabbitMQ.QueueSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYMENTS_MTN_API_KEY", "secret-key")
	t.Setenv("PAYMENTS_AIRTEL_ENABLED", "false")
	t.Setenv("PAYMENTS_CALLBACK_BASE_URL", "https://pay.example.com/")
	t.Setenv("PAYMENTS_TIMEOUT", "5s")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "secret-key", cfg.Payments.MTN.APIKey)
	assert.False(t, cfg.Payments.Airtel.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Payments.Timeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "https://pay.example.com/payments/webhook/mtn", cfg.CallbackURL("mtn"))
}

func TestBuildDSN(t *testing.T) {
	mysql := DatabaseConfig{Driver: "mysql", Host: "db", User: "root", Password: "pw", Name: "resto"}
	assert.Equal(t, "root:pw@tcp(db:3306)/resto?charset=utf8mb4&parseTime=True&loc=Local", mysql.BuildDSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: "6543", User: "app", Password: "pw", Name: "resto"}
	assert.Equal(t, "host=db user=app password=pw dbname=resto port=6543 sslmode=disable TimeZone=UTC", pg.BuildDSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "restaurant.db"}
	assert.Equal(t, "restaurant.db", lite.BuildDSN())

	explicit := DatabaseConfig{Driver: "mysql", DSN: "custom"}
	assert.Equal(t, "custom", explicit.BuildDSN())
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInitDBSqlite(t *testing.T) {
	db, err := InitDB(DatabaseConfig{Driver: "sqlite", Name: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())
}
