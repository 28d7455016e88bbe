package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/util"
	"github.com/gnana997/mtag/pkg/workspace"
)

// configFileName is looked up in the working directory, then $HOME.
const configFileName = ".mtag.yaml"

// ProjectConfig holds the contents of .mtag.yaml merged with MTAG_* variables.
type ProjectConfig struct {
	Factory    string   `yaml:"factory" mapstructure:"factory"`
	Attribute  string   `yaml:"attribute" mapstructure:"attribute"`
	Quote      string   `yaml:"quote" mapstructure:"quote"`
	AttrsNames []string `yaml:"attrs_names,omitempty" mapstructure:"attrs_names"`

	Include    []string `yaml:"include" mapstructure:"include"`
	Exclude    []string `yaml:"exclude" mapstructure:"exclude"`
	OutDir     string   `yaml:"out_dir,omitempty" mapstructure:"out_dir"`
	Workers    int      `yaml:"workers,omitempty" mapstructure:"workers"`
	DebounceMs int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`

	Log    LogConfig `yaml:"log" mapstructure:"log"`
	MCPLog string    `yaml:"mcp_log,omitempty" mapstructure:"mcp_log"`
}

// LogConfig is the log section of .mtag.yaml.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultProjectConfig is what `mtag init` writes.
func defaultProjectConfig() ProjectConfig {
	rc := rewriter.DefaultConfig()
	ws := workspace.DefaultOptions()
	lc := util.DefaultLoggerConfig()

	return ProjectConfig{
		Factory:    rc.Factory,
		Attribute:  rc.Attribute,
		Quote:      rc.Quote,
		Include:    ws.Include,
		Exclude:    ws.Exclude,
		DebounceMs: int(workspace.DefaultDebounce / time.Millisecond),
		Log: LogConfig{
			Level:  string(lc.Level),
			Format: string(lc.Format),
		},
	}
}

// loadProjectConfig reads the config file (explicit path, or .mtag.yaml in
// the working directory or $HOME) and applies MTAG_* overrides. A missing
// implicit config file is not an error; a missing explicit one is.
func loadProjectConfig(v *viper.Viper, path string) (*ProjectConfig, error) {
	defaults := defaultProjectConfig()
	v.SetDefault("factory", defaults.Factory)
	v.SetDefault("attribute", defaults.Attribute)
	v.SetDefault("quote", defaults.Quote)
	v.SetDefault("attrs_names", []string{})
	v.SetDefault("include", defaults.Include)
	v.SetDefault("exclude", defaults.Exclude)
	v.SetDefault("out_dir", "")
	v.SetDefault("workers", 0)
	v.SetDefault("debounce_ms", defaults.DebounceMs)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("mcp_log", "")

	v.SetEnvPrefix("MTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(configFileName, ".yaml"))
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg ProjectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// RewriterConfig returns the rewriter settings.
func (c *ProjectConfig) RewriterConfig() rewriter.Config {
	return rewriter.Config{
		Factory:    c.Factory,
		Attribute:  c.Attribute,
		Quote:      c.Quote,
		AttrsNames: c.AttrsNames,
	}
}

// WorkspaceOptions returns the discovery and output settings.
func (c *ProjectConfig) WorkspaceOptions() workspace.Options {
	return workspace.Options{
		Include: c.Include,
		Exclude: c.Exclude,
		OutDir:  c.OutDir,
		Workers: c.Workers,
	}
}

// WatchOptions returns the watcher settings.
func (c *ProjectConfig) WatchOptions() workspace.WatchOptions {
	opts := workspace.DefaultWatchOptions()
	if c.DebounceMs > 0 {
		opts.Debounce = time.Duration(c.DebounceMs) * time.Millisecond
	}
	return opts
}

// writeProjectConfig writes cfg as YAML. Existing files are kept unless force.
func writeProjectConfig(path string, cfg ProjectConfig, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
