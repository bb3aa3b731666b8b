// Package config holds the tunables of the resolution pipeline. Everything
// has a sensible default; a YAML file can override any subset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini"`
	Search   SearchConfig   `yaml:"search"`
	Resolver ResolverConfig `yaml:"resolver"`
}

type GeminiConfig struct {
	Model string `yaml:"model"`
	// Policy replaces the built-in segmentation policy prompt when set.
	Policy string `yaml:"segmentation_policy"`
}

type SearchConfig struct {
	PerPage    int `yaml:"per_page"`
	MaxRetries int `yaml:"max_retries"`
	BackoffMS  int `yaml:"backoff_ms"`
}

type ResolverConfig struct {
	StaggerMS       int      `yaml:"stagger_ms"`
	TierGapMS       int      `yaml:"tier_gap_ms"`
	FallbackTerms   []string `yaml:"fallback_terms"`
	FallbackMaxPage int      `yaml:"fallback_max_page"`
	SafetyTerm      string   `yaml:"safety_term"`
	TermTopN        int      `yaml:"term_top_n"`
	FallbackTopN    int      `yaml:"fallback_top_n"`
	RefineTopN      int      `yaml:"refine_top_n"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Search: SearchConfig{
			PerPage:    15,
			MaxRetries: 3,
			BackoffMS:  500,
		},
		Resolver: ResolverConfig{
			StaggerMS: 350,
			TierGapMS: 350,
			FallbackTerms: []string{
				"cat",
				"kitten",
				"cute cat",
				"cat eyes",
				"cat playing",
			},
			FallbackMaxPage: 5,
			SafetyTerm:      "cat",
			TermTopN:        5,
			FallbackTopN:    3,
			RefineTopN:      3,
		},
	}
}

// Load reads a YAML config file over the defaults. Unset fields keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.PerPage <= 0 {
		return fmt.Errorf("search.per_page must be > 0")
	}
	if c.Search.MaxRetries < 0 {
		return fmt.Errorf("search.max_retries must be >= 0")
	}
	if len(c.Resolver.FallbackTerms) == 0 {
		return fmt.Errorf("resolver.fallback_terms must not be empty")
	}
	if c.Resolver.FallbackMaxPage <= 0 {
		return fmt.Errorf("resolver.fallback_max_page must be > 0")
	}
	if c.Resolver.SafetyTerm == "" {
		return fmt.Errorf("resolver.safety_term is required")
	}
	return nil
}
