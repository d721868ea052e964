// Package config layers cpan2spec settings from defaults, a YAML config file,
// CPAN2SPEC_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName   = "cpan2spec"
	EnvPrefix = "CPAN2SPEC"

	DefaultMirror        = "https://cpan.metacpan.org"
	DefaultRelease       = "1"
	DefaultWorkers       = 4
	DefaultScriptTimeout = 5 * time.Second
)

// ErrConfigFile wraps failures reading an explicitly requested config file.
var ErrConfigFile = errors.New("reading config file")

// Config holds every run setting.
type Config struct {
	Packager      string        `mapstructure:"packager"`
	Release       string        `mapstructure:"release"`
	Epoch         string        `mapstructure:"epoch"`
	OutDir        string        `mapstructure:"outdir"`
	CompatCore    bool          `mapstructure:"compat_core"`
	Macros        bool          `mapstructure:"macros"`
	Mirror        string        `mapstructure:"mirror"`
	CacheDir      string        `mapstructure:"cache_dir"`
	Corelist      string        `mapstructure:"corelist"`
	ScriptTimeout time.Duration `mapstructure:"script_timeout"`
	Workers       int           `mapstructure:"workers"`
	Force         bool          `mapstructure:"force"`
	Deps          bool          `mapstructure:"deps"`
	Diff          bool          `mapstructure:"diff"`
	Verbose       bool          `mapstructure:"verbose"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"packager":       "packager",
	"release":        "release",
	"epoch":          "epoch",
	"outdir":         "outdir",
	"compat-core":    "compat_core",
	"macros":         "macros",
	"mirror":         "mirror",
	"cache-dir":      "cache_dir",
	"corelist":       "corelist",
	"script-timeout": "script_timeout",
	"workers":        "workers",
	"force":          "force",
	"deps":           "deps",
	"diff":           "diff",
	"verbose":        "verbose",
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// ConfigDir overrides the default config directory.
	ConfigDir string
	// Flags are bound on top of every other source. Only flags the user set
	// override lower layers.
	Flags *pflag.FlagSet
}

// Dir returns $XDG_CONFIG_HOME/cpan2spec, defaulting to ~/.config/cpan2spec.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultPackager returns "Full Name <login@host>" for the current user.
func DefaultPackager() string {
	login, name := "nobody", ""
	if u, err := user.Current(); err == nil {
		login, name = u.Username, u.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	if name == "" {
		name = login
	}
	return fmt.Sprintf("%s <%s@%s>", name, login, host)
}

// Load resolves the configuration. A missing default config file is not an
// error; a missing or unreadable explicit one is.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("packager", DefaultPackager())
	v.SetDefault("release", DefaultRelease)
	v.SetDefault("epoch", "")
	v.SetDefault("outdir", ".")
	v.SetDefault("compat_core", false)
	v.SetDefault("macros", true)
	v.SetDefault("mirror", DefaultMirror)
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("corelist", "")
	v.SetDefault("script_timeout", DefaultScriptTimeout)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("force", false)
	v.SetDefault("deps", false)
	v.SetDefault("diff", false)
	v.SetDefault("verbose", false)

	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrConfigFile, opts.ConfigFile, err)
		}
	} else {
		dir := opts.ConfigDir
		if dir == "" {
			var err error
			if dir, err = Dir(); err != nil {
				return nil, err
			}
		}
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrConfigFile, path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values no source can be trusted to get right.
func (c *Config) Validate() error {
	if c.Release == "" {
		return errors.New("release must not be empty")
	}
	if c.Epoch != "" && strings.Trim(c.Epoch, "0123456789") != "" {
		return fmt.Errorf("epoch %q is not a number", c.Epoch)
	}
	if c.ScriptTimeout <= 0 {
		return fmt.Errorf("script_timeout must be positive, got %s", c.ScriptTimeout)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
