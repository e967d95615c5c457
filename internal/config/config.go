// Package config loads remedy configuration from YAML with sensible defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AdvisorConfig configures the language-model advisory service.
type AdvisorConfig struct {
	// Enabled toggles advisory calls. When false every component runs on its
	// deterministic tier only.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the OpenAI-compatible endpoint. Empty means the client
	// library default.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Model is the model identifier sent with every request.
	Model string `yaml:"model"`

	// Timeout bounds every advisory call. On timeout the caller proceeds on
	// its deterministic result.
	Timeout time.Duration `yaml:"timeout"`
}

// ClassifierConfig holds the classifier's decision thresholds.
type ClassifierConfig struct {
	// PatternAdoptionRate is the minimum stored success rate at which a
	// matched pattern's strategies are adopted as-is.
	PatternAdoptionRate float64 `yaml:"pattern_adoption_rate"`

	// AdvisorTrigger is the rule-based confidence below which the advisor
	// is consulted.
	AdvisorTrigger float64 `yaml:"advisor_trigger"`

	// LongMessageChars marks messages above this length as under-specified
	// for the deterministic rules, triggering the advisor.
	LongMessageChars int `yaml:"long_message_chars"`

	// CacheTTL and CacheSize bound the advisor-result cache owned by each
	// classifier instance.
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
}

// PlannerConfig holds the planner's decision thresholds.
type PlannerConfig struct {
	// AdvisorTrigger is the plan confidence below which the advisor may
	// replace the deterministic step sequence.
	AdvisorTrigger float64 `yaml:"advisor_trigger"`

	// DefaultWait is the wait duration for backoff retry plans.
	DefaultWait time.Duration `yaml:"default_wait"`
}

// LearningConfig holds the learning adapter's thresholds.
type LearningConfig struct {
	// MinPatternsForSuggestions is the number of patterns sharing an error
	// type required before improvement analysis runs.
	MinPatternsForSuggestions int `yaml:"min_patterns_for_suggestions"`
}

// Config represents remedy configuration options.
type Config struct {
	// StorePath is the path to the SQLite database.
	StorePath string `yaml:"store_path"`

	// JournalPath is the local fallback journal written when the store is
	// unreachable.
	JournalPath string `yaml:"journal_path"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Advisor    AdvisorConfig    `yaml:"advisor"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Planner    PlannerConfig    `yaml:"planner"`
	Learning   LearningConfig   `yaml:"learning"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		StorePath:   ".remedy/remedy.db",
		JournalPath: ".remedy/fallback.jsonl",
		LogLevel:    "info",
		Advisor: AdvisorConfig{
			Enabled:   true,
			APIKeyEnv: "REMEDY_ADVISOR_API_KEY",
			Model:     "gpt-4o-mini",
			Timeout:   15 * time.Second,
		},
		Classifier: ClassifierConfig{
			PatternAdoptionRate: 0.7,
			AdvisorTrigger:      0.8,
			LongMessageChars:    100,
			CacheTTL:            24 * time.Hour,
			CacheSize:           1000,
		},
		Planner: PlannerConfig{
			AdvisorTrigger: 0.8,
			DefaultWait:    1000 * time.Millisecond,
		},
		Learning: LearningConfig{
			MinPatternsForSuggestions: 3,
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Duration fields come in as strings ("15s", "24h"); parse via a
	// temporary shape before merging onto the defaults.
	type yamlAdvisor struct {
		Enabled   *bool  `yaml:"enabled"`
		BaseURL   string `yaml:"base_url"`
		APIKeyEnv string `yaml:"api_key_env"`
		Model     string `yaml:"model"`
		Timeout   string `yaml:"timeout"`
	}
	type yamlClassifier struct {
		PatternAdoptionRate *float64 `yaml:"pattern_adoption_rate"`
		AdvisorTrigger      *float64 `yaml:"advisor_trigger"`
		LongMessageChars    *int     `yaml:"long_message_chars"`
		CacheTTL            string   `yaml:"cache_ttl"`
		CacheSize           *int     `yaml:"cache_size"`
	}
	type yamlPlanner struct {
		AdvisorTrigger *float64 `yaml:"advisor_trigger"`
		DefaultWait    string   `yaml:"default_wait"`
	}
	type yamlConfig struct {
		StorePath   string         `yaml:"store_path"`
		JournalPath string         `yaml:"journal_path"`
		LogLevel    string         `yaml:"log_level"`
		Advisor     yamlAdvisor    `yaml:"advisor"`
		Classifier  yamlClassifier `yaml:"classifier"`
		Planner     yamlPlanner    `yaml:"planner"`
		Learning    LearningConfig `yaml:"learning"`
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.StorePath != "" {
		cfg.StorePath = yc.StorePath
	}
	if yc.JournalPath != "" {
		cfg.JournalPath = yc.JournalPath
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}

	if yc.Advisor.Enabled != nil {
		cfg.Advisor.Enabled = *yc.Advisor.Enabled
	}
	if yc.Advisor.BaseURL != "" {
		cfg.Advisor.BaseURL = yc.Advisor.BaseURL
	}
	if yc.Advisor.APIKeyEnv != "" {
		cfg.Advisor.APIKeyEnv = yc.Advisor.APIKeyEnv
	}
	if yc.Advisor.Model != "" {
		cfg.Advisor.Model = yc.Advisor.Model
	}
	if yc.Advisor.Timeout != "" {
		d, err := time.ParseDuration(yc.Advisor.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid advisor timeout %q: %w", yc.Advisor.Timeout, err)
		}
		cfg.Advisor.Timeout = d
	}

	if yc.Classifier.PatternAdoptionRate != nil {
		cfg.Classifier.PatternAdoptionRate = *yc.Classifier.PatternAdoptionRate
	}
	if yc.Classifier.AdvisorTrigger != nil {
		cfg.Classifier.AdvisorTrigger = *yc.Classifier.AdvisorTrigger
	}
	if yc.Classifier.LongMessageChars != nil {
		cfg.Classifier.LongMessageChars = *yc.Classifier.LongMessageChars
	}
	if yc.Classifier.CacheTTL != "" {
		d, err := time.ParseDuration(yc.Classifier.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier cache_ttl %q: %w", yc.Classifier.CacheTTL, err)
		}
		cfg.Classifier.CacheTTL = d
	}
	if yc.Classifier.CacheSize != nil {
		cfg.Classifier.CacheSize = *yc.Classifier.CacheSize
	}

	if yc.Planner.AdvisorTrigger != nil {
		cfg.Planner.AdvisorTrigger = *yc.Planner.AdvisorTrigger
	}
	if yc.Planner.DefaultWait != "" {
		d, err := time.ParseDuration(yc.Planner.DefaultWait)
		if err != nil {
			return nil, fmt.Errorf("invalid planner default_wait %q: %w", yc.Planner.DefaultWait, err)
		}
		cfg.Planner.DefaultWait = d
	}

	if yc.Learning.MinPatternsForSuggestions > 0 {
		cfg.Learning.MinPatternsForSuggestions = yc.Learning.MinPatternsForSuggestions
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if c.Classifier.PatternAdoptionRate < 0 || c.Classifier.PatternAdoptionRate > 1 {
		return fmt.Errorf("classifier pattern_adoption_rate must be in [0,1], got %f", c.Classifier.PatternAdoptionRate)
	}
	if c.Classifier.AdvisorTrigger < 0 || c.Classifier.AdvisorTrigger > 1 {
		return fmt.Errorf("classifier advisor_trigger must be in [0,1], got %f", c.Classifier.AdvisorTrigger)
	}
	if c.Planner.AdvisorTrigger < 0 || c.Planner.AdvisorTrigger > 1 {
		return fmt.Errorf("planner advisor_trigger must be in [0,1], got %f", c.Planner.AdvisorTrigger)
	}
	if c.Advisor.Timeout <= 0 {
		return fmt.Errorf("advisor timeout must be positive, got %v", c.Advisor.Timeout)
	}
	if c.Learning.MinPatternsForSuggestions < 1 {
		return fmt.Errorf("learning min_patterns_for_suggestions must be >= 1, got %d", c.Learning.MinPatternsForSuggestions)
	}
	return nil
}
