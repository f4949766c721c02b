package tsa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stealthd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: "127.0.0.1:9000"
default_scheme: sitaiba
log_format: json
schemes:
  sitaiba:
    library: /opt/tsa/libsitaiba.so
  zhao: {}
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "sitaiba", cfg.DefaultScheme)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "params", cfg.ParamDir)
	assert.Equal(t, DefaultMaxBenchmarkIterations, cfg.MaxBenchmarkIterations)
	assert.Equal(t, map[string]string{"sitaiba": "/opt/tsa/libsitaiba.so"}, cfg.LibraryOverrides())
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_benchmark_iterations: -4\n"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "max_benchmark_iterations")

	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [\n"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvListenAddr:    ":9999",
		EnvLibDir:        "/usr/lib/tsa",
		EnvMaxIterations: "25",
		EnvLogLevel:      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "/usr/lib/tsa", cfg.LibDir)
	assert.Equal(t, 25, cfg.MaxBenchmarkIterations)
	assert.Equal(t, "info", cfg.LogLevel)

	env[EnvMaxIterations] = "many"
	assert.Error(t, DefaultConfig().ApplyEnv(lookup))
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(""))
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STEALTHD_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("STEALTHD_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("STEALTHD_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("STEALTHD_TEST_DOTENV"))
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
}
