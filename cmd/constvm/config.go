package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"constvm/internal/interp"
)

// evalConfig is the optional TOML configuration for an evaluation run,
// loaded via --config.
type evalConfig struct {
	Limits limitsConfig `toml:"limits"`
	Eval   runConfig    `toml:"eval"`
}

type limitsConfig struct {
	MaxSteps int `toml:"max-steps"`
	MaxStack int `toml:"max-stack"`
}

type runConfig struct {
	Jobs        int  `toml:"jobs"`
	TagPointers bool `toml:"tag-pointers"`
}

func loadEvalConfig(path string) (evalConfig, error) {
	var cfg evalConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return evalConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return evalConfig{}, fmt.Errorf("config %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Limits.MaxSteps < 0 || cfg.Limits.MaxStack < 0 {
		return evalConfig{}, fmt.Errorf("config %s: limits must be non-negative", path)
	}
	return cfg, nil
}

// limits lowers the config to evaluator limits, zeroes meaning "use the
// default budget".
func (c evalConfig) limits() interp.Limits {
	l := interp.DefaultLimits()
	if c.Limits.MaxSteps > 0 {
		l.MaxSteps = c.Limits.MaxSteps
	}
	if c.Limits.MaxStack > 0 {
		l.MaxStack = c.Limits.MaxStack
	}
	return l
}
