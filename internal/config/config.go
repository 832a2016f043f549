package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/logging"
	"github.com/KaramelBytes/riskdash/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "RISKDASH"

// Global configuration structure.
type Global struct {
	BackendURL     string `mapstructure:"backend_url" yaml:"backend_url"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	SessionDir     string `mapstructure:"session_dir" yaml:"session_dir"`
	MaxUploadMB    int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Web dashboard
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Charts
	ChartWidth    int `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight   int `mapstructure:"chart_height" yaml:"chart_height"`
	RenderWorkers int `mapstructure:"render_workers" yaml:"render_workers"`
}

// HTTPTimeout returns the backend client timeout.
func (g *Global) HTTPTimeout() time.Duration {
	return time.Duration(g.HTTPTimeoutSec) * time.Second
}

// MaxUploadBytes returns the upload size limit, 0 meaning unlimited.
func (g *Global) MaxUploadBytes() int64 {
	if g.MaxUploadMB <= 0 {
		return 0
	}
	return int64(g.MaxUploadMB) << 20
}

func (g *Global) Logging() logging.Options {
	return logging.Options{Level: g.LogLevel, Format: g.LogFormat}
}

// setters validate and apply a single key for `config set`.
var setters = map[string]func(g *Global, val string) error{
	"backend_url": func(g *Global, val string) error {
		if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
			return fmt.Errorf("invalid backend_url: %s (must start with http:// or https://)", val)
		}
		g.BackendURL = strings.TrimRight(val, "/")
		return nil
	},
	"http_timeout_sec": intSetter("http_timeout_sec", 1, func(g *Global) *int { return &g.HTTPTimeoutSec }),
	"session_dir": func(g *Global, val string) error {
		g.SessionDir = val
		return nil
	},
	"max_upload_mb": intSetter("max_upload_mb", 0, func(g *Global) *int { return &g.MaxUploadMB }),
	"listen_addr": func(g *Global, val string) error {
		g.ListenAddr = val
		return nil
	},
	"log_level": func(g *Global, val string) error {
		if _, err := logging.New(logging.Options{Level: val}); err != nil {
			return err
		}
		g.LogLevel = strings.ToLower(val)
		return nil
	},
	"log_format": func(g *Global, val string) error {
		if _, err := logging.New(logging.Options{Format: val}); err != nil {
			return err
		}
		g.LogFormat = strings.ToLower(val)
		return nil
	},
	"chart_width":    intSetter("chart_width", 64, func(g *Global) *int { return &g.ChartWidth }),
	"chart_height":   intSetter("chart_height", 64, func(g *Global) *int { return &g.ChartHeight }),
	"render_workers": intSetter("render_workers", 1, func(g *Global) *int { return &g.RenderWorkers }),
}

func intSetter(key string, min int, field func(*Global) *int) func(*Global, string) error {
	return func(g *Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return fmt.Errorf("invalid int for %s: %v (minimum %d)", key, val, min)
		}
		*field(g) = i
		return nil
	}
}

// Set updates one key by its config-file name.
func (g *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(g, val)
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dir returns ~/.riskdash.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".riskdash"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.riskdash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env (.env included) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env never overrides variables already set in the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("backend_url", backend.DefaultBaseURL)
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("session_dir", "")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("chart_width", 480)
	v.SetDefault("chart_height", 240)
	v.SetDefault("render_workers", 4)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SessionDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.SessionDir = dir
	}
	dir, err := utils.ExpandHome(c.SessionDir)
	if err != nil {
		return nil, err
	}
	c.SessionDir = dir
	return &c, nil
}
