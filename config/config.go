package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Script ScriptConfig `yaml:"script"`
	Video  VideoConfig  `yaml:"video"`
	Run    RunConfig    `yaml:"run"`
	Paths  PathsConfig  `yaml:"paths"`
}

type ScriptConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature float32  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	RetryDelay  Duration `yaml:"retry_delay"`
}

type VideoConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type RunConfig struct {
	IdeaDelay Duration `yaml:"idea_delay"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

// Duration lets config.yaml carry "60s"-style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads config.yaml and fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Script.BaseURL == "" {
		c.Script.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.Script.Model == "" {
		c.Script.Model = "google/gemini-2.5-pro"
	}
	if c.Script.Temperature == 0 {
		c.Script.Temperature = 0.7
	}
	if c.Script.MaxTokens == 0 {
		c.Script.MaxTokens = 8000
	}
	if c.Script.Timeout == 0 {
		c.Script.Timeout = Duration(60 * time.Second)
	}
	if c.Script.MaxAttempts == 0 {
		c.Script.MaxAttempts = 3
	}
	if c.Script.RetryDelay == 0 {
		c.Script.RetryDelay = Duration(2 * time.Second)
	}
	if c.Video.BaseURL == "" {
		c.Video.BaseURL = "https://api.replicate.com/v1"
	}
	if c.Video.Model == "" {
		c.Video.Model = "google/veo-3-fast"
	}
	if c.Run.IdeaDelay == 0 {
		c.Run.IdeaDelay = Duration(5 * time.Second)
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "videos"
	}
}
