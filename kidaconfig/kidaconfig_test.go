package kidaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "env.yaml", `
loader:
  search_paths: ["templates"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Cache.TemplateCacheSize)
	assert.Equal(t, int64(32<<20), cfg.Cache.FragmentCacheBytes)
	assert.Equal(t, "@every 5m", cfg.Cache.SweepIntervalCron)
	assert.Equal(t, "utf-8", cfg.Loader.Encoding)
}

func TestLoadConfig_ExplicitValuesNotOverridden(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "env.yaml", `
cache:
  template_cache_size: 10
  fragment_cache_bytes: 1024
  sweep_interval_cron: "@every 1m"
loader:
  encoding: "latin1"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Cache.TemplateCacheSize)
	assert.Equal(t, int64(1024), cfg.Cache.FragmentCacheBytes)
	assert.Equal(t, "@every 1m", cfg.Cache.SweepIntervalCron)
	assert.Equal(t, "latin1", cfg.Loader.Encoding)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/env.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "bad.yaml", "loader: [this is not a map")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_VariableExpansionFromProcessEnv(t *testing.T) {
	t.Setenv("KIDA_TEST_SITE_NAME", "Acme")

	dir := t.TempDir()
	path := writeConfig(t, dir, "env.yaml", `
variables:
  values:
    site_name: "${KIDA_TEST_SITE_NAME}"
    greeting: "${KIDA_TEST_MISSING:hello}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Acme", cfg.Variables.Values["site_name"])
	assert.Equal(t, "hello", cfg.Variables.Values["greeting"])
}

func TestLoadConfig_VariableExpansionFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".env", "KIDA_TEST_FROM_FILE=from-file-value\n")

	path := writeConfig(t, dir, "env.yaml", `
variables:
  env_file: ".env"
  values:
    api_key: "${KIDA_TEST_FROM_FILE}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file-value", cfg.Variables.Values["api_key"])
}

func TestLoadConfig_ProcessEnvTakesPrecedenceOverEnvFile(t *testing.T) {
	t.Setenv("KIDA_TEST_PRECEDENCE", "from-process-env")

	dir := t.TempDir()
	writeConfig(t, dir, ".env", "KIDA_TEST_PRECEDENCE=from-file\n")

	path := writeConfig(t, dir, "env.yaml", `
variables:
  env_file: ".env"
  values:
    setting: "${KIDA_TEST_PRECEDENCE}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-process-env", cfg.Variables.Values["setting"])
}

func TestLoadConfig_MissingEnvFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "env.yaml", `
variables:
  env_file: "does-not-exist.env"
  values:
    x: "${Y}"
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandVars(t *testing.T) {
	lookup := map[string]string{"NAME": "World"}

	assert.Equal(t, "Hello, World!", expandVars("Hello, ${NAME}!", lookup))
	assert.Equal(t, "fallback", expandVars("${MISSING:fallback}", lookup))
	assert.Equal(t, "", expandVars("${MISSING}", lookup))
	assert.Equal(t, "no vars here", expandVars("no vars here", lookup))
}
