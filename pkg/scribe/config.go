package scribe

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/callscribe/pkg/configutil"
	"github.com/harunnryd/callscribe/pkg/events"
)

type Config struct {
	Transports    TransportsConfig    `mapstructure:"transports"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Session       SessionConfig       `mapstructure:"session"`
	Publish       PublishConfig       `mapstructure:"publish"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type SessionConfig struct {
	ConnectRetries    int `mapstructure:"connect_retries"`
	ConnectBackoffMS  int `mapstructure:"connect_backoff_ms"`
	BreakerThreshold  int `mapstructure:"breaker_threshold"`
	BreakerCooldownMS int `mapstructure:"breaker_cooldown_ms"`
	DrainTimeoutMS    int `mapstructure:"drain_timeout_ms"`
}

type PublishConfig struct {
	Kafka events.KafkaConfig `mapstructure:"kafka"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
	MetricsPath   string `mapstructure:"metrics_path"`
	// AudioSampleRate is the share of audio events logged when VerboseAudio is set.
	AudioSampleRate float64 `mapstructure:"audio_sample_rate"`
	EventBuffer     int     `mapstructure:"event_buffer"`
	VerboseAudio    bool    `mapstructure:"verbose_audio"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("transports.provider", "twilio")
	v.SetDefault("vendors.stt.provider", "deepgram")
	v.SetDefault("session.connect_retries", 2)
	v.SetDefault("session.connect_backoff_ms", 250)
	v.SetDefault("session.breaker_threshold", 5)
	v.SetDefault("session.breaker_cooldown_ms", 30000)
	v.SetDefault("session.drain_timeout_ms", 10000)
	v.SetDefault("publish.kafka.enabled", false)
	v.SetDefault("publish.kafka.topic_partial", "transcripts.partial")
	v.SetDefault("publish.kafka.topic_final", "transcripts.final")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.metrics_path", "/metrics")
	v.SetDefault("observability.audio_sample_rate", 0.1)
	v.SetDefault("observability.event_buffer", 2048)
	v.SetDefault("observability.verbose_audio", false)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	configutil.ExpandEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if c.Session.ConnectRetries < 0 {
		return fmt.Errorf("session.connect_retries must not be negative")
	}
	if c.Observability.AudioSampleRate < 0 || c.Observability.AudioSampleRate > 1 {
		return fmt.Errorf("observability.audio_sample_rate must be within [0, 1]")
	}
	if c.Publish.Kafka.Enabled && len(c.Publish.Kafka.Brokers) == 0 {
		return fmt.Errorf("publish.kafka.brokers is required when kafka is enabled")
	}
	if p := c.Observability.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("observability.metrics_path must start with /")
	}
	return nil
}
