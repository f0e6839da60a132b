package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/reportlens/pkg/compress"
	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/dedup"
	"github.com/exploopio/reportlens/pkg/server"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

// Config is the reportlens configuration. Values come from defaults, then
// the config file, then REPORTLENS_* variables, then flags.
type Config struct {
	Dedup    dedup.Options `yaml:"dedup"`
	Server   server.Config `yaml:"server"`
	Output   OutputConfig  `yaml:"output"`
	Workers  int           `yaml:"workers"`
	LogLevel string        `yaml:"log_level"`
	Verbose  bool          `yaml:"verbose"`
}

// OutputConfig controls how analysis results are written.
type OutputConfig struct {
	Format    string `yaml:"format"`     // text or json
	Compress  string `yaml:"compress"`   // none, gzip or zstd
	TopGroups int    `yaml:"top_groups"` // groups printed in text mode, 0 = all
}

func defaultConfig() *Config {
	return &Config{
		Dedup:    dedup.DefaultOptions(),
		Server:   server.DefaultConfig(),
		Output:   OutputConfig{Format: formatText, Compress: string(compress.AlgorithmNone), TopGroups: 10},
		LogLevel: "info",
	}
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// applyEnv overlays REPORTLENS_* variables.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("REPORTLENS_THRESHOLD"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REPORTLENS_THRESHOLD: %w", err)
		}
		cfg.Dedup.SimilarityThreshold = t
	}
	if v := getenv("REPORTLENS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPORTLENS_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := getenv("REPORTLENS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("REPORTLENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("REPORTLENS_COMPRESS"); v != "" {
		cfg.Output.Compress = v
	}
	return nil
}

// validate checks the settings the chosen mode uses.
func (c *Config) validate(serve bool, inputs []string) error {
	v := core.NewValidator()
	v.Range("dedup.similarity_threshold", c.Dedup.SimilarityThreshold, 0, 1)
	v.Min("workers", c.Workers, 0)
	v.OneOf("log_level", c.LogLevel, []string{"debug", "info", "warn", "warning", "error", "silent"})

	if serve {
		if err := c.Server.Validate(); err != nil {
			return err
		}
		return v.Validate()
	}

	v.OneOf("output.format", c.Output.Format, []string{formatText, formatJSON})
	v.OneOf("output.compress", c.Output.Compress, []string{"none", "gzip", "zstd"})
	v.Min("output.top_groups", c.Output.TopGroups, 0)
	v.FilesExist("input", inputs)
	return v.Validate()
}

func (c *Config) logger() core.Logger {
	if c.Verbose {
		return core.LoggerFromVerbose(appName, true)
	}
	return core.NewDefaultLogger(appName, core.ParseLogLevel(c.LogLevel))
}
