package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/stitchmart")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.Assets.Backend)
	assert.Equal(t, "/uploads/designs", cfg.Assets.URLPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Hour, cfg.Jobs.OrphanSweepInterval)
	assert.False(t, cfg.GeneratedSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ASSET_BACKEND", "MINIO")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("THUMBNAIL_SIZE", "320")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "minio", cfg.Assets.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 320, cfg.Assets.ThumbnailSize)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TOKEN_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_TTL")
}

func TestLoad_GeneratesSecretOutsideProduction(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/stitchmart")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GeneratedSecret)
	assert.Len(t, cfg.Auth.JWTSecret, 64)
}

func TestLoad_TOMLFile(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "stitchmart.toml")
	content := `
port = "7000"

[assets]
backend = "local"
upload_dir = "/srv/uploads"
thumbnail_size = 200

[jobs]
orphan_sweep_interval = "10m"
orphan_max_age = "2h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("STITCHMART_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "/srv/uploads", cfg.Assets.UploadDir)
	assert.Equal(t, 200, cfg.Assets.ThumbnailSize)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.OrphanSweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.Jobs.OrphanMaxAge)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.Assets.Backend = "ftp" }, "ASSET_BACKEND"},
		{"minio without endpoint", func(c *Config) { c.Assets.Backend = "minio" }, "MINIO_ENDPOINT"},
		{"no auth", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"zero sweep interval", func(c *Config) { c.Jobs.OrphanSweepInterval = 0 }, "ORPHAN_SWEEP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "postgres://localhost/stitchmart"
			cfg.Auth.JWTSecret = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
