package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(viper.New())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10*time.Second, cfg.KafkaReadTO)
	assert.False(t, cfg.KafkaEnabled)
	assert.True(t, cfg.Seed)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MODE", "worker")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("JWT_TTL", "bogus")

	cfg := Load(viper.New())

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL, "invalid duration falls back to default")
}

func TestLoad_EnvironmentFileMergedOverBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("SERVER_ADDR: \":9000\"\nCSV_PATH: base.csv\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"),
		[]byte("CSV_PATH: test.csv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("CHIRP_ENV", "test")
	cfg := Load(viper.New())

	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, "test.csv", cfg.CSVPath)
	assert.Equal(t, "test", cfg.Env)
}
