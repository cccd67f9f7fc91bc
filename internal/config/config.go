package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 8080
	defaultDataDir           = "data"
	defaultMaxConcurrentRuns = 1
	defaultLogLevel          = "info"
	defaultITSDivisor        = 4
)

// Config describes runtime configuration for the pipeline and its service.
type Config struct {
	Port              int      `yaml:"port"`
	DataDir           string   `yaml:"data_dir"`
	MaxConcurrentRuns int      `yaml:"max_concurrent_runs"`
	LogLevel          string   `yaml:"log_level"`
	Tools             Tools    `yaml:"tools"`
	Pipeline          Pipeline `yaml:"pipeline"`
}

// Tools holds the command line used to start each external program. A value
// may carry leading arguments, e.g. "python remove_empty_fastq_entries.py".
type Tools struct {
	Reorient  string `yaml:"reorient"`
	ITSxpress string `yaml:"itsxpress"`
	FixFastq  string `yaml:"fix_fastq"`
	Qiime     string `yaml:"qiime"`
	Biom      string `yaml:"biom"`
}

// Pipeline holds per-run settings.
type Pipeline struct {
	CPU        int    `yaml:"cpu"`
	ITSDivisor int    `yaml:"its_divisor"`
	Paired     bool   `yaml:"paired"`
	Reorient   bool   `yaml:"reorient"`
	Classifier string `yaml:"classifier"`
	Metadata   string `yaml:"metadata"`
	// FailFast stops a run after the first stage with a failed program.
	FailFast bool `yaml:"fail_fast"`
	// RunCoreDiversity executes the core-metrics command, which is otherwise
	// only prepared and logged.
	RunCoreDiversity bool `yaml:"run_core_diversity"`
	DryRun           bool `yaml:"dry_run"`
}

// Default returns a configuration that works on the current machine.
func Default() Config {
	return Config{
		Port:              defaultPort,
		DataDir:           defaultDataDir,
		MaxConcurrentRuns: defaultMaxConcurrentRuns,
		LogLevel:          defaultLogLevel,
		Tools:             DefaultTools(),
		Pipeline: Pipeline{
			CPU:        runtime.NumCPU(),
			ITSDivisor: defaultITSDivisor,
		},
	}
}

// DefaultTools returns the program names found on a standard install.
func DefaultTools() Tools {
	return Tools{
		Reorient:  "reformat.sh",
		ITSxpress: "itsxpress",
		FixFastq:  "python remove_empty_fastq_entries.py",
		Qiime:     "qiime",
		Biom:      "biom",
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	defaults := DefaultTools()
	fill := func(v *string, def string) {
		*v = strings.TrimSpace(*v)
		if *v == "" {
			*v = def
		}
	}
	fill(&cfg.Tools.Reorient, defaults.Reorient)
	fill(&cfg.Tools.ITSxpress, defaults.ITSxpress)
	fill(&cfg.Tools.FixFastq, defaults.FixFastq)
	fill(&cfg.Tools.Qiime, defaults.Qiime)
	fill(&cfg.Tools.Biom, defaults.Biom)
}

// Validate rejects values that would leave the pipeline unable to run.
func (c Config) Validate() error {
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("invalid max_concurrent_runs: %d (must be >= 1)", c.MaxConcurrentRuns)
	}
	if c.Pipeline.CPU < 1 {
		return fmt.Errorf("invalid pipeline.cpu: %d (must be >= 1)", c.Pipeline.CPU)
	}
	if c.Pipeline.ITSDivisor < 1 {
		return fmt.Errorf("invalid pipeline.its_divisor: %d (must be >= 1)", c.Pipeline.ITSDivisor)
	}
	return nil
}
