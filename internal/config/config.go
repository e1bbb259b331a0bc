// Package config loads gridjobs settings.
//
// Precedence, highest first: runtime overrides (CLI flags), environment
// variables (GRIDJOBS_*), the config file, built-in defaults.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/gridjobs/pkg/jobdb"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GRIDJOBS"

// ConfigFileEnv names the environment variable holding a config file path.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Config is the resolved configuration of a gridjobs run.
type Config struct {
	WorkDir  string         `mapstructure:"workdir"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// JobsConfig configures the job registry.
type JobsConfig struct {
	// Limit caps how many job records are loaded; -1 sizes to the records found.
	Limit int `mapstructure:"limit"`

	// Selector is a persistent selector expression applied to every listing.
	Selector string `mapstructure:"selector"`

	// RecordExt is the record file extension.
	RecordExt string `mapstructure:"record_ext"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// JobsDir is where job records live.
func (c *Config) JobsDir() string {
	return filepath.Join(c.WorkDir, "jobs")
}

// RegistryOptions translates the config into registry options.
func (c *Config) RegistryOptions() ([]jobdb.Option, error) {
	sel, err := jobdb.ParseSelector(c.Jobs.Selector)
	if err != nil {
		return nil, fmt.Errorf("jobs.selector: %w", err)
	}
	return []jobdb.Option{
		jobdb.WithJobLimit(c.Jobs.Limit),
		jobdb.WithSelector(sel),
		jobdb.WithRecordExt(c.Jobs.RecordExt),
		jobdb.WithProgressInterval(c.Progress.Interval),
	}, nil
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return fmt.Errorf("workdir is required")
	}
	if c.Jobs.Limit < -1 {
		return fmt.Errorf("jobs.limit must be >= -1, got %d", c.Jobs.Limit)
	}
	if strings.TrimSpace(c.Jobs.RecordExt) == "" {
		return fmt.Errorf("jobs.record_ext is required")
	}
	if _, err := jobdb.ParseSelector(c.Jobs.Selector); err != nil {
		return fmt.Errorf("jobs.selector: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Profile {
	case "CONSOLE", "STRUCTURED":
	default:
		return fmt.Errorf("logging.profile must be CONSOLE or STRUCTURED, got %q", c.Logging.Profile)
	}
	if c.Progress.Interval < 0 {
		return fmt.Errorf("progress.interval must not be negative")
	}
	return nil
}

// EnvSpec maps an environment variable to a config key.
type EnvSpec struct {
	Name string
	Key  string
}

func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "_WORKDIR", Key: "workdir"},
		{Name: EnvPrefix + "_JOB_LIMIT", Key: "jobs.limit"},
		{Name: EnvPrefix + "_SELECTOR", Key: "jobs.selector"},
		{Name: EnvPrefix + "_RECORD_EXT", Key: "jobs.record_ext"},
		{Name: EnvPrefix + "_LOG_LEVEL", Key: "logging.level"},
		{Name: EnvPrefix + "_LOG_PROFILE", Key: "logging.profile"},
		{Name: EnvPrefix + "_PROGRESS_INTERVAL", Key: "progress.interval"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workdir", "work")
	v.SetDefault("jobs.limit", -1)
	v.SetDefault("jobs.selector", "")
	v.SetDefault("jobs.record_ext", jobdb.DefaultRecordExt)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")
	v.SetDefault("progress.interval", "2s")
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load resolves the configuration. Each overrides map is a nested map of
// config keys (for example {"jobs": {"limit": 10}}); a top-level
// "config_file" entry selects the config file, as does $GRIDJOBS_CONFIG.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	flat := make(map[string]any)
	for _, o := range overrides {
		flatten("", o, flat)
	}

	configFile := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if p, ok := flat["config_file"].(string); ok && strings.TrimSpace(p) != "" {
		configFile = strings.TrimSpace(p)
	}
	delete(flat, "config_file")

	if configFile != "" {
		settings, err := LoadFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, fmt.Errorf("merge config file: %w", err)
		}
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Key, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for k, val := range flat {
		v.Set(k, val)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = configFile
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Profile = strings.ToUpper(strings.TrimSpace(cfg.Logging.Profile))
	cfg.Jobs.RecordExt = strings.TrimPrefix(strings.TrimSpace(cfg.Jobs.RecordExt), ".")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	current = &cfg
	mu.Unlock()
	return &cfg, nil
}

// GetConfig returns the configuration from the last successful Load, or nil.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
