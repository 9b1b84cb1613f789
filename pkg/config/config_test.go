package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.App.StorageDriver)
	assert.Equal(t, 15*time.Minute, cfg.Inventory.ReservationDefaultTTL)
	assert.Equal(t, 48*time.Hour, cfg.Inventory.TransferStuckAfter)
	assert.Equal(t, 3, cfg.Inventory.MaxRetries)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5, cfg.Redis.LockRetries, "un candado ocupado se reintenta")
	assert.Equal(t, 50*time.Millisecond, cfg.Redis.LockBackoff)
}

func TestLoad_RedisLockRetries(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("REDIS_LOCK_RETRIES", "8")
	t.Setenv("REDIS_LOCK_BACKOFF_MS", "20")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Redis.LockRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Redis.LockBackoff)

	t.Setenv("REDIS_LOCK_RETRIES", "-1")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RESERVATION_DEFAULT_TTL_SECONDS", "60")
	t.Setenv("TRANSFER_REQUIRE_APPROVAL", "1")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.App.StorageDriver, "el driver no distingue mayúsculas")
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Inventory.ReservationDefaultTTL)
	assert.True(t, cfg.Inventory.TransferApproval)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Validaciones(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"TTL máximo menor al de defecto", map[string]string{
			"RESERVATION_DEFAULT_TTL_SECONDS": "600", "RESERVATION_MAX_TTL_SECONDS": "60",
		}},
		{"production sin secret", map[string]string{"APP_ENV": "production"}},
		{"reintentos de candado negativos", map[string]string{"REDIS_LOCK_RETRIES": "-2"}},
		{"kafka sin brokers", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_BROKERS": " , "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORAGE_DRIVER", "memory")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_ConnectionString(t *testing.T) {
	db := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "inventario", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/inventario?sslmode=disable", db.ConnectionString(),
		"la contraseña se codifica en la URL")

	db.DatabaseURL = "postgresql://u@otro/x"
	assert.Equal(t, "postgresql://u@otro/x", db.ConnectionString())
}
