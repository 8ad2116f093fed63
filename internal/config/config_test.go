package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REGISTRY_DRIVER", "SQLite")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, RegistrySQLite, cfg.Storage.RegistryDriver)
	assert.Equal(t, BlobFS, cfg.Storage.BlobDriver)
	assert.Equal(t, "/srv/uploads", cfg.Storage.UploadDir)
	assert.True(t, filepath.IsAbs(cfg.Storage.DataDir))
	assert.Equal(t, int64(20<<20), cfg.Storage.MaxUploadBytes)
}

func TestLoad_MaxUploadBytesIsCapped(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int64
	}{
		{name: "lower limit is kept", env: "1024", want: 1024},
		{name: "above ceiling is capped", env: "104857600", want: 20 << 20},
		{name: "zero falls back to ceiling", env: "0", want: 20 << 20},
		{name: "garbage falls back to ceiling", env: "lots", want: 20 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAX_UPLOAD_BYTES", tt.env)
			assert.Equal(t, tt.want, Load().Storage.MaxUploadBytes)
		})
	}
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	t.Setenv(key, "value")

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	t.Setenv(key, "")
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	t.Setenv(key, "")
	assert.Equal(t, 10, getEnvInt(key, 10))
}
