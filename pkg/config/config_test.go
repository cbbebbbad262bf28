package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SKILLKIT_BASE_PATH", "/tmp/skillkit-test")

	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/skillkit-test", cfg.BaseDir)
	assert.Equal(t, ModeCopy, cfg.Install.Mode)
	assert.Equal(t, 4, cfg.Install.Concurrency)
	assert.Equal(t, DefaultLockfile, cfg.Install.Lockfile)
	assert.Equal(t, DefaultRetryConfig, cfg.Retry)
	assert.Equal(t, 8732, cfg.Server.Port)
	assert.Equal(t, filepath.Join("/tmp/skillkit-test", "cache"), cfg.CacheDir())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `base_dir: /srv/skillkit
sources:
  - ./skills
  - jingkaihe/skills@main
registry:
  url: https://registry.example.com
  token: secret
retry:
  attempts: 5
  initial_delay: 100
  max_delay: 1000
  backoff_type: fixed
install:
  mode: symlink
  concurrency: 8
  exclude:
    - "**/*.tmp"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/srv/skillkit", cfg.BaseDir)
	assert.Equal(t, []string{"./skills", "jingkaihe/skills@main"}, cfg.Sources)
	assert.Equal(t, "https://registry.example.com", cfg.Registry.URL)
	assert.Equal(t, "secret", cfg.Registry.Token)
	assert.Equal(t, RetryConfig{Attempts: 5, InitialDelay: 100, MaxDelay: 1000, BackoffType: "fixed"}, cfg.Retry)
	assert.Equal(t, ModeSymlink, cfg.Install.Mode)
	assert.Equal(t, 8, cfg.Install.Concurrency)
	assert.Equal(t, []string{"**/*.tmp"}, cfg.Install.Exclude)
	assert.Equal(t, DefaultLockfile, cfg.Install.Lockfile)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SKILLKIT_BASE_PATH", "/tmp/skillkit-test")
	t.Setenv("SKILLKIT_INSTALL_CONCURRENCY", "2")
	t.Setenv("SKILLKIT_REGISTRY_URL", "http://localhost:9000")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	SetDefaults(v)
	v.SetDefault("registry.url", "")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Install.Concurrency)
	assert.Equal(t, "http://localhost:9000", cfg.Registry.URL)
}

func TestValidate(t *testing.T) {
	t.Setenv("SKILLKIT_BASE_PATH", "/tmp/skillkit-test")

	v := viper.New()
	SetDefaults(v)
	v.Set("install.mode", "hardlink")
	_, err := Load(v)
	assert.ErrorContains(t, err, "invalid install.mode")

	v = viper.New()
	SetDefaults(v)
	v.Set("retry.attempts", 2)
	v.Set("retry.backoff_type", "linear")
	_, err = Load(v)
	assert.ErrorContains(t, err, "invalid retry.backoff_type")
}

func TestLoadClampsConcurrency(t *testing.T) {
	t.Setenv("SKILLKIT_BASE_PATH", "/tmp/skillkit-test")

	v := viper.New()
	SetDefaults(v)
	v.Set("install.concurrency", 0)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Install.Concurrency)
}
