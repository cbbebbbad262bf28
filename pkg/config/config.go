// Package config loads skillkit settings from config.yaml, SKILLKIT_* environment
// variables, an optional .env file and command-line flags bound through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variables read by skillkit.
	EnvPrefix = "SKILLKIT"
	// DirName is the per-user state directory under $HOME.
	DirName = ".skillkit"
	// DefaultLockfile is the project lockfile name.
	DefaultLockfile = "skills-lock.yaml"

	ModeCopy    = "copy"
	ModeSymlink = "symlink"
)

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// RetryConfig controls retries of remote registry requests. Delays are in milliseconds.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     int    `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type" yaml:"backoff_type"` // "fixed" or "exponential"
}

// DefaultRetryConfig is used when no retry attempts are configured.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 500,
	MaxDelay:     5000,
	BackoffType:  "exponential",
}

// RegistryConfig points at a remote skill registry.
type RegistryConfig struct {
	URL   string `mapstructure:"url" json:"url,omitempty"`
	Token string `mapstructure:"token" json:"-"`
}

// InstallConfig holds installer defaults.
type InstallConfig struct {
	Mode        string   `mapstructure:"mode" json:"mode"`
	Concurrency int      `mapstructure:"concurrency" json:"concurrency"`
	Exclude     []string `mapstructure:"exclude" json:"exclude,omitempty"`
	Lockfile    string   `mapstructure:"lockfile" json:"lockfile"`
}

// ServerConfig configures the registry server.
type ServerConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port"`
	Token string `mapstructure:"token" json:"-"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" json:"enabled"`
	Sampler string  `mapstructure:"sampler" json:"sampler"`
	Ratio   float64 `mapstructure:"ratio" json:"ratio"`
}

// Config is the full skillkit configuration.
type Config struct {
	BaseDir   string         `mapstructure:"base_dir" json:"base_dir"`
	Sources   []string       `mapstructure:"sources" json:"sources,omitempty"`
	Registry  RegistryConfig `mapstructure:"registry" json:"registry"`
	Retry     RetryConfig    `mapstructure:"retry" json:"retry"`
	Install   InstallConfig  `mapstructure:"install" json:"install"`
	Server    ServerConfig   `mapstructure:"server" json:"server"`
	Tracing   TracingConfig  `mapstructure:"tracing" json:"tracing"`
	LogLevel  string         `mapstructure:"log_level" json:"log_level"`
	LogFormat string         `mapstructure:"log_format" json:"log_format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", "")
	v.SetDefault("install.mode", ModeCopy)
	v.SetDefault("install.concurrency", 4)
	v.SetDefault("install.lockfile", DefaultLockfile)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8732)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "fmt")
}

// Init prepares v to read config.yaml from the user state directory and the
// working directory, plus SKILLKIT_* environment variables. A .env file in the
// working directory is loaded first if present; variables already set win.
func Init(v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join("$HOME", DirName))
	v.AddConfigPath(".")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	return nil
}

// Load decodes the configuration held by v and fills in derived defaults.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}
	if cfg.Install.Concurrency < 1 {
		cfg.Install.Concurrency = 1
	}
	if cfg.Install.Mode == "" {
		cfg.Install.Mode = ModeCopy
	}

	if cfg.BaseDir == "" {
		base, err := DefaultBaseDir()
		if err != nil {
			return cfg, err
		}
		cfg.BaseDir = base
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be corrected silently.
func (c Config) Validate() error {
	switch c.Install.Mode {
	case ModeCopy, ModeSymlink:
	default:
		return errors.Errorf("invalid install.mode %q: expected %q or %q", c.Install.Mode, ModeCopy, ModeSymlink)
	}
	switch c.Retry.BackoffType {
	case "", "fixed", "exponential":
	default:
		return errors.Errorf("invalid retry.backoff_type %q: expected fixed or exponential", c.Retry.BackoffType)
	}
	return nil
}

// DefaultBaseDir returns the state directory, honouring SKILLKIT_BASE_PATH.
func DefaultBaseDir() (string, error) {
	if base := os.Getenv("SKILLKIT_BASE_PATH"); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, DirName), nil
}

// CacheDir is where remote skills are materialized for symlink installs.
func (c Config) CacheDir() string {
	return filepath.Join(c.BaseDir, "cache")
}
