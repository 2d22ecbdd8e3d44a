package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NICHEPRESS_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	mediaAPIKeyEnv    = "MEDIA_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	OpenAI        OpenAIConfig       `yaml:"openai"`
	Media         MediaConfig        `yaml:"media"`
	Notifications NotificationConfig `yaml:"notifications"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Output        OutputConfig       `yaml:"output"`
	Sweep         SweepConfig        `yaml:"sweep"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN
// selects the in-memory registry.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// OpenAIConfig defines how to contact the chat-completions API.
type OpenAIConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// MediaConfig describes the royalty-free image search service.
type MediaConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// PipelineConfig selects the generation provider and bounds retries and
// section-failure policy. By default a section whose generation fails is
// published with a placeholder body; FailOnSectionError makes it fail the
// whole expansion stage instead.
type PipelineConfig struct {
	Provider           string   `yaml:"provider"`
	MaxAttempts        int      `yaml:"maxAttempts"`
	RetryBackoff       Duration `yaml:"retryBackoff"`
	FailOnSectionError bool     `yaml:"failOnSectionError"`
}

// Duration wraps time.Duration so YAML accepts "500ms"-style strings.
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// OutputConfig locates the generated site sources and artifact cache.
type OutputConfig struct {
	SitesDir     string `yaml:"sitesDir"`
	ArtifactsDir string `yaml:"artifactsDir"`
}

// SweepConfig defines when planned niches are picked up for generation.
type SweepConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the sweep timezone string to a time.Location.
func (s SweepConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(mediaAPIKeyEnv); v != "" {
		c.Media.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Sweep.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Sweep.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}

	if override.Media.Endpoint != "" {
		base.Media.Endpoint = override.Media.Endpoint
	}
	if override.Media.APIKey != "" {
		base.Media.APIKey = override.Media.APIKey
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Pipeline.Provider != "" {
		base.Pipeline.Provider = override.Pipeline.Provider
	}
	if override.Pipeline.MaxAttempts > 0 {
		base.Pipeline.MaxAttempts = override.Pipeline.MaxAttempts
	}
	if override.Pipeline.RetryBackoff > 0 {
		base.Pipeline.RetryBackoff = override.Pipeline.RetryBackoff
	}
	if override.Pipeline.FailOnSectionError {
		base.Pipeline.FailOnSectionError = true
	}

	if override.Output.SitesDir != "" {
		base.Output.SitesDir = override.Output.SitesDir
	}
	if override.Output.ArtifactsDir != "" {
		base.Output.ArtifactsDir = override.Output.ArtifactsDir
	}

	if override.Sweep.CronExpression != "" {
		base.Sweep.CronExpression = override.Sweep.CronExpression
	}
	if override.Sweep.Timezone != "" {
		base.Sweep.Timezone = override.Sweep.Timezone
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		OpenAI: OpenAIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o",
			APIKey:   "",
		},
		Media: MediaConfig{
			Endpoint: "https://api.openverse.org/v1/images",
			APIKey:   "",
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Pipeline: PipelineConfig{
			Provider:           "openai",
			MaxAttempts:        3,
			RetryBackoff:       Duration(2 * time.Second),
			FailOnSectionError: false,
		},
		Output: OutputConfig{
			SitesDir:     "sites",
			ArtifactsDir: "artifacts",
		},
		Sweep: SweepConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
	}
}
