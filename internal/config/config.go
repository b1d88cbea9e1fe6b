package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	LogLevel string         `mapstructure:"log_level"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Rewrite  RewriteConfig  `mapstructure:"rewrite"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

type LLMConfig struct {
	Provider    string            `mapstructure:"provider"`
	Model       string            `mapstructure:"model"`
	VisionModel string            `mapstructure:"vision_model"`
	BaseURL     string            `mapstructure:"base_url"`
	APIKey      string            `mapstructure:"api_key"`
	Headers     map[string]string `mapstructure:"headers"`
	MaxTokens   int               `mapstructure:"max_tokens"`
	Timeout     time.Duration     `mapstructure:"timeout"`

	// ExtractMaxTokens caps extraction responses; 0 uses max_tokens.
	ExtractMaxTokens int `mapstructure:"extract_max_tokens"`
}

type CaptureConfig struct {
	Source   string   `mapstructure:"source"` // dir, command
	Dir      string   `mapstructure:"dir"`
	Command  string   `mapstructure:"command"`
	Accounts []string `mapstructure:"accounts"`
	Count    int      `mapstructure:"count"`
}

type PipelineConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	DedupPrefix int           `mapstructure:"dedup_prefix"`
}

type RewriteConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Locale       string `mapstructure:"locale"`
	Instructions string `mapstructure:"instructions"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

type ScheduleConfig struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

type DebugConfig struct {
	RecordExchanges bool `mapstructure:"record_exchanges"`
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	defaultDataDir := filepath.Join(homeDir, ".shotpost")

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", "2m")
	viper.SetDefault("capture.source", "dir")
	viper.SetDefault("capture.dir", filepath.Join(defaultDataDir, "screenshots"))
	viper.SetDefault("capture.count", 20)
	viper.SetDefault("pipeline.delay", "2s")
	viper.SetDefault("pipeline.dedup_prefix", 100)
	viper.SetDefault("rewrite.enabled", true)
	viper.SetDefault("rewrite.locale", "en-US")
	viper.SetDefault("rewrite.max_tokens", 2048)
	viper.SetDefault("schedule.cron", "0 */2 * * *")
	viper.SetDefault("schedule.timezone", "Local")

	// Environment variable overrides
	viper.SetEnvPrefix("SHOTPOST")
	viper.AutomaticEnv()
	viper.BindEnv("data_dir", "SHOTPOST_DATA_DIR")
	viper.BindEnv("log_level", "SHOTPOST_LOG_LEVEL")
	viper.BindEnv("llm.provider", "SHOTPOST_LLM_PROVIDER")
	viper.BindEnv("llm.model", "SHOTPOST_LLM_MODEL")
	viper.BindEnv("llm.vision_model", "SHOTPOST_LLM_VISION_MODEL")
	viper.BindEnv("llm.base_url", "SHOTPOST_LLM_BASE_URL")

	// Config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if dir := viper.GetString("data_dir"); dir != defaultDataDir {
		viper.AddConfigPath(dir)
	}
	viper.AddConfigPath(defaultDataDir)

	// Read config file if exists (ignore error if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.DedupPrefix <= 0 {
		return fmt.Errorf("pipeline.dedup_prefix must be positive, got %d", c.Pipeline.DedupPrefix)
	}
	if c.Pipeline.Delay < 0 {
		return fmt.Errorf("pipeline.delay must not be negative")
	}
	if c.LLM.ExtractMaxTokens < 0 || c.Rewrite.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	switch c.Capture.Source {
	case "dir", "command":
	default:
		return fmt.Errorf("unknown capture source: %s", c.Capture.Source)
	}
	return nil
}

// ExtractModel is the model used for screenshot extraction.
func (c *Config) ExtractModel() string {
	if c.LLM.VisionModel != "" {
		return c.LLM.VisionModel
	}
	return c.LLM.Model
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "shotpost.db")
}

func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}
