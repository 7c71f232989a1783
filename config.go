package viper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/interp"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GC      GCConfig      `toml:"gc" yaml:"gc"`
	Debug   DebugConfig   `toml:"debug" yaml:"debug"`
	Bench   BenchConfig   `toml:"bench" yaml:"bench"`
	Runtime RuntimeConfig `toml:"runtime" yaml:"runtime"`
}

type GCConfig struct {
	Threshold  int  `toml:"threshold,omitempty" yaml:"threshold,omitempty"`
	GrowFactor int  `toml:"grow_factor,omitempty" yaml:"grow_factor,omitempty"`
	Debug      bool `toml:"debug,omitempty" yaml:"debug,omitempty"`
}

// DebugConfig selects the intermediate forms dumped while running a file.
type DebugConfig struct {
	Opcodes bool `toml:"opcodes,omitempty" yaml:"opcodes,omitempty"`
	AST     bool `toml:"ast,omitempty" yaml:"ast,omitempty"`
	Lexer   bool `toml:"lexer,omitempty" yaml:"lexer,omitempty"`
}

// BenchConfig selects the phases whose elapsed time is reported.
type BenchConfig struct {
	Lexer   bool `toml:"lexer,omitempty" yaml:"lexer,omitempty"`
	Parser  bool `toml:"parser,omitempty" yaml:"parser,omitempty"`
	Compile bool `toml:"compile,omitempty" yaml:"compile,omitempty"`
	Runtime bool `toml:"runtime,omitempty" yaml:"runtime,omitempty"`
}

type RuntimeConfig struct {
	MaxCallDepth int `toml:"max_call_depth,omitempty" yaml:"max_call_depth,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		GC: GCConfig{
			Threshold:  heap.DefaultThreshold,
			GrowFactor: heap.DefaultGrowFactor,
		},
		Runtime: RuntimeConfig{
			MaxCallDepth: interp.DefaultMaxCallDepth,
		},
	}
}

// VMSettings converts the gc and runtime sections for interp.New.
func (c Config) VMSettings() interp.Settings {
	return interp.Settings{
		GC: heap.Settings{
			Threshold:  c.GC.Threshold,
			GrowFactor: c.GC.GrowFactor,
			Debug:      c.GC.Debug,
		},
		MaxCallDepth: c.Runtime.MaxCallDepth,
	}
}

// LoadConfig reads a toml or yaml file, chosen by extension, on top of
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.GC.Threshold <= 0 {
		return fmt.Errorf("gc.threshold must be positive, got %d", c.GC.Threshold)
	}
	if c.GC.GrowFactor < 2 {
		return fmt.Errorf("gc.grow_factor must be at least 2, got %d", c.GC.GrowFactor)
	}
	if c.Runtime.MaxCallDepth <= 0 {
		return fmt.Errorf("runtime.max_call_depth must be positive, got %d", c.Runtime.MaxCallDepth)
	}
	return nil
}
