package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/stepgraph/graph"
	"github.com/smallnest/stepgraph/log"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const (
	defaultRedisPrefix = "stepgraph:"
	defaultTable       = "checkpoints"
)

// Config is the file form of a program's runtime settings.
type Config struct {
	Execution  Execution        `yaml:"execution"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Log        LogConfig        `yaml:"log"`
}

// Execution mirrors graph.ExecutionConfig. Unset fields keep the engine
// defaults.
type Execution struct {
	MaxSteps       int   `yaml:"max_steps" hcl:"max_steps,optional"`
	CycleDetection *bool `yaml:"cycle_detection" hcl:"cycle_detection,optional"`
	CycleWindow    int   `yaml:"cycle_window" hcl:"cycle_window,optional"`
	CycleThreshold int   `yaml:"cycle_threshold" hcl:"cycle_threshold,optional"`
}

// CheckpointConfig selects and configures a checkpoint store.
type CheckpointConfig struct {
	// Backend is one of memory, file, redis, postgres or sqlite.
	Backend string `yaml:"backend" hcl:"backend,optional"`
	// Dir is the directory of the file backend.
	Dir string `yaml:"dir" hcl:"dir,optional"`
	// Addr, Password, DB and Prefix configure the redis backend.
	Addr     string `yaml:"addr" hcl:"addr,optional"`
	Password string `yaml:"password" hcl:"password,optional"`
	DB       int    `yaml:"db" hcl:"db,optional"`
	Prefix   string `yaml:"prefix" hcl:"prefix,optional"`
	// TTL is a Go duration string such as "24h". Empty means no expiry.
	TTL string `yaml:"ttl" hcl:"ttl,optional"`
	// DSN is the postgres connection string or the sqlite file path.
	DSN   string `yaml:"dsn" hcl:"dsn,optional"`
	Table string `yaml:"table" hcl:"table,optional"`
}

// LogConfig configures the engine logger.
type LogConfig struct {
	Level string `yaml:"level" hcl:"level,optional"`
}

type hclConfig struct {
	Execution  *Execution        `hcl:"execution,block"`
	Checkpoint *CheckpointConfig `hcl:"checkpoint,block"`
	Log        *LogConfig        `hcl:"log,block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a .yaml, .yml or .hcl file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".hcl":
		return ParseHCL(data, path)
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}
}

// ParseYAML decodes a YAML document.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return finish(&cfg)
}

// ParseHCL decodes an HCL document. filename is used in diagnostics.
func ParseHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", filename, diags)
	}

	var parsed hclConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %w", filename, diags)
	}

	cfg := &Config{}
	if parsed.Execution != nil {
		cfg.Execution = *parsed.Execution
	}
	if parsed.Checkpoint != nil {
		cfg.Checkpoint = *parsed.Checkpoint
	}
	if parsed.Log != nil {
		cfg.Log = *parsed.Log
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(c.Checkpoint.Backend))
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = BackendMemory
	}
	if c.Checkpoint.Backend == BackendRedis && c.Checkpoint.Prefix == "" {
		c.Checkpoint.Prefix = defaultRedisPrefix
	}
	if c.Checkpoint.Table == "" {
		c.Checkpoint.Table = defaultTable
	}
	if c.Log.Level == "" {
		c.Log.Level = strings.ToLower(log.LogLevelInfo.String())
	}
}

// Validate checks backend names, required backend settings and values.
func (c *Config) Validate() error {
	e := c.Execution
	if e.MaxSteps < 0 || e.CycleWindow < 0 || e.CycleThreshold < 0 {
		return fmt.Errorf("execution limits must not be negative")
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c CheckpointConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Dir == "" {
			return fmt.Errorf("checkpoint backend %q requires dir", c.Backend)
		}
	case BackendRedis:
		if c.Addr == "" {
			return fmt.Errorf("checkpoint backend %q requires addr", c.Backend)
		}
	case BackendPostgres, BackendSQLite:
		if c.DSN == "" {
			return fmt.Errorf("checkpoint backend %q requires dsn", c.Backend)
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Backend)
	}
	if _, err := c.ttl(); err != nil {
		return err
	}
	return nil
}

func (c CheckpointConfig) ttl() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid checkpoint ttl %q: %w", c.TTL, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("checkpoint ttl must not be negative")
	}
	return d, nil
}

// ExecutionConfig converts the file settings to the engine's limits.
func (e Execution) ExecutionConfig() graph.ExecutionConfig {
	cfg := graph.DefaultExecutionConfig()
	if e.MaxSteps > 0 {
		cfg.MaxSteps = e.MaxSteps
	}
	if e.CycleDetection != nil {
		cfg.CycleDetection = *e.CycleDetection
	}
	if e.CycleWindow > 0 {
		cfg.CycleWindow = e.CycleWindow
	}
	if e.CycleThreshold > 0 {
		cfg.CycleThreshold = e.CycleThreshold
	}
	return cfg
}
