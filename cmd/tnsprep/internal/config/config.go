package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load
const FileName = "tnsprep.yaml"

// Config represents the tnsprep.yaml configuration
type Config struct {
	// Namespace injected as xmlns on root elements
	NamespaceURI string `mapstructure:"namespace_uri" yaml:"namespace_uri"`

	// Tag prefixes whose bind: attributes are never expanded
	ReservedNamespaces []string `mapstructure:"reserved_namespaces" yaml:"reserved_namespaces"`

	// File extensions picked up when walking directories
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`

	// Directory names skipped when walking
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	// Output directory; empty writes next to the source with OutSuffix
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`

	// Suffix inserted before the extension when writing next to the source
	OutSuffix string `mapstructure:"out_suffix" yaml:"out_suffix"`

	// Number of files transformed concurrently
	Parallel int `mapstructure:"parallel" yaml:"parallel"`

	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	// Whether transform results are cached
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Cache directory; "~" is expanded
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Maximum on-disk size in bytes, 0 for unlimited
	MaxSize int64 `mapstructure:"max_size" yaml:"max_size"`

	// Maximum entry age, 0 for no expiry
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`

	// Entries kept in memory
	MemoryEntries int `mapstructure:"memory_entries" yaml:"memory_entries"`
}

// WatchConfig contains watch mode configuration
type WatchConfig struct {
	// Quiet period after the last change before re-running
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// zerolog level name: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		NamespaceURI:       "tns",
		ReservedNamespaces: []string{"svelte"},
		Extensions:         []string{".svelte"},
		Exclude:            []string{"node_modules", ".git", "platforms", "hooks"},
		OutDir:             "",
		OutSuffix:          ".tns",
		Parallel:           4,
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           "~/.cache/tnsprep",
			MaxSize:       64 << 20, // 64 MB
			MaxAge:        7 * 24 * time.Hour,
			MemoryEntries: 512,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads tnsprep.yaml from projectPath, falling back to defaults when
// the file does not exist
func Load(projectPath string) (*Config, error) {
	configPath := filepath.Join(projectPath, FileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}

	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file and merges
// TNSPREP_* environment variables over it
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)

	return &cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if strings.ContainsAny(c.NamespaceURI, "\"<>") {
		errs = append(errs, fmt.Errorf("namespace_uri %q contains characters that cannot appear in an attribute", c.NamespaceURI))
	}
	if c.Parallel < 1 {
		errs = append(errs, fmt.Errorf("parallel must be at least 1, got %d", c.Parallel))
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extension %q must start with a dot", ext))
		}
	}
	if c.Cache.MaxSize < 0 {
		errs = append(errs, errors.New("cache.max_size must not be negative"))
	}

	return errors.Join(errs...)
}

// newViper returns a viper instance primed with defaults so that every key
// can be overridden from the environment, e.g. TNSPREP_NAMESPACE_URI or
// TNSPREP_CACHE_ENABLED
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TNSPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("namespace_uri", d.NamespaceURI)
	v.SetDefault("reserved_namespaces", d.ReservedNamespaces)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("out_suffix", d.OutSuffix)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)
	v.SetDefault("cache.memory_entries", d.Cache.MemoryEntries)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("logging.level", d.Logging.Level)

	return v
}

// applyEnv merges environment overrides into a config built from defaults
func (c *Config) applyEnv() {
	v := newViper()
	var cfg Config
	if err := v.Unmarshal(&cfg); err == nil {
		*c = cfg
	}
	applyDefaults(c)
	c.Cache.Dir = expandPath(c.Cache.Dir)
}

// applyDefaults applies default values to missing configuration
func applyDefaults(c *Config) {
	defaults := Default()

	if c.NamespaceURI == "" {
		c.NamespaceURI = defaults.NamespaceURI
	}
	if c.ReservedNamespaces == nil {
		c.ReservedNamespaces = defaults.ReservedNamespaces
	}
	if len(c.Extensions) == 0 {
		c.Extensions = defaults.Extensions
	}
	if c.OutSuffix == "" && c.OutDir == "" {
		c.OutSuffix = defaults.OutSuffix
	}
	if c.Parallel == 0 {
		c.Parallel = defaults.Parallel
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = defaults.Cache.Dir
	}
	if c.Cache.MemoryEntries == 0 {
		c.Cache.MemoryEntries = defaults.Cache.MemoryEntries
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
