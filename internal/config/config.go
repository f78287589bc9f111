// Package config loads pageforge configuration using Viper, from a
// .pageforge.yml file, PAGEFORGE_ environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// PAGEFORGE_SERVER_PORT.
const EnvPrefix = "PAGEFORGE"

// FileName is the default configuration file name, without extension.
const FileName = ".pageforge"

// Precompile modes.
const (
	PrecompileBlocking   = "blocking"
	PrecompileBackground = "background"
	PrecompileOff        = "off"
)

type Config struct {
	Source     SourceConfig     `mapstructure:"source" yaml:"source"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render"`
	Precompile PrecompileConfig `mapstructure:"precompile" yaml:"precompile"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

type SourceConfig struct {
	Root       string   `mapstructure:"root" yaml:"root"`
	ViewsDir   string   `mapstructure:"views_dir" yaml:"views_dir"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	IndexName  string   `mapstructure:"index_name" yaml:"index_name"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
}

type RenderConfig struct {
	DefaultLayout string `mapstructure:"default_layout" yaml:"default_layout"`
	BareFormat    string `mapstructure:"bare_format" yaml:"bare_format"`
}

type PrecompileConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`
	Workers        int    `mapstructure:"workers" yaml:"workers"`
	RewarmSchedule string `mapstructure:"rewarm_schedule" yaml:"rewarm_schedule"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.root", ".")
	v.SetDefault("source.views_dir", "views")
	v.SetDefault("source.extensions", []string{".tmpl", ".md", ".templ"})
	v.SetDefault("source.index_name", "index")
	v.SetDefault("source.exclude", []string{".*", "node_modules", "vendor", "*_test.*", "*.bak"})

	v.SetDefault("render.default_layout", "_Layout")
	v.SetDefault("render.bare_format", "bare")

	v.SetDefault("precompile.mode", PrecompileBackground)
	v.SetDefault("precompile.workers", 0)
	v.SetDefault("precompile.rewarm_schedule", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.live_reload", true)

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", 150*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "pageforge")
}

// Configure prepares v to read the config file and environment overrides.
// An empty file means search for .pageforge.{yml,yaml} in the working
// directory.
func Configure(v *viper.Viper, file string) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile reads the configured file. A missing default file is not an
// error; a missing explicit file is.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Default returns the configuration used when no file, environment variable
// or flag overrides anything.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadFrom(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load builds a Config from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds and validates a Config from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Comma-separated env values arrive as a single string
	if v.IsSet("source.extensions") {
		config.Source.Extensions = splitList(v.GetStringSlice("source.extensions"))
	}
	if v.IsSet("source.exclude") {
		config.Source.Exclude = splitList(v.GetStringSlice("source.exclude"))
	}

	for i, ext := range config.Source.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.Source.Extensions[i] = ext
	}
	config.Precompile.Mode = strings.ToLower(config.Precompile.Mode)
	config.Log.Level = strings.ToLower(config.Log.Level)
	config.Log.Format = strings.ToLower(config.Log.Format)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggerConfig converts the log section to a logger configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateSourceConfig(&config.Source); err != nil {
		return fmt.Errorf("source config: %w", err)
	}
	if err := validatePrecompileConfig(&config.Precompile); err != nil {
		return fmt.Errorf("precompile config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if config.Watch.Debounce < 0 {
		return errors.NewConfigError(fmt.Sprintf("watch config: negative debounce %s", config.Watch.Debounce))
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateSourceConfig(config *SourceConfig) error {
	if config.Root == "" {
		return errors.NewConfigError("root is empty")
	}
	if len(config.Extensions) == 0 {
		return errors.NewConfigError("no template extensions configured")
	}
	for _, ext := range config.Extensions {
		if ext == "." || strings.ContainsAny(ext[1:], `./\`) {
			return errors.NewConfigError(fmt.Sprintf("invalid extension %q", ext))
		}
	}
	if err := validateName("views_dir", config.ViewsDir); err != nil {
		return err
	}
	if err := validateName("index_name", config.IndexName); err != nil {
		return err
	}
	for _, pattern := range config.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid exclude pattern %q: %v", pattern, err))
		}
	}
	return nil
}

// validateName accepts a single path segment.
func validateName(field, name string) error {
	if name == "" {
		return errors.NewConfigError(field + " is empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.NewConfigError(fmt.Sprintf("%s must be a single path segment: %q", field, name))
	}
	return nil
}

func validatePrecompileConfig(config *PrecompileConfig) error {
	switch config.Mode {
	case PrecompileBlocking, PrecompileBackground, PrecompileOff:
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown mode %q (want %s, %s or %s)",
			config.Mode, PrecompileBlocking, PrecompileBackground, PrecompileOff))
	}
	if config.Workers < 0 {
		return errors.NewConfigError(fmt.Sprintf("workers %d is negative", config.Workers))
	}
	if config.RewarmSchedule != "" {
		if _, err := cron.ParseStandard(config.RewarmSchedule); err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid rewarm_schedule %q: %v", config.RewarmSchedule, err))
		}
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 lets the system pick a port
	if config.Port < 0 || config.Port > 65535 {
		return errors.NewConfigError(fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}
	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ /") {
		return errors.NewConfigError(fmt.Sprintf("invalid host %q", config.Host))
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return errors.NewConfigError(err.Error())
	}
	switch config.Format {
	case "text", "json":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown format %q (want text or json)", config.Format))
	}
	return nil
}
