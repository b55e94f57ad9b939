package story

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads session configuration from Viper, falling back to
// defaults for anything unset.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("voice") {
		cfg.Voice = viper.GetString("voice")
	}
	if viper.IsSet("accent") {
		cfg.Accent = viper.GetString("accent")
	}
	if viper.IsSet("genre") {
		cfg.Genre = viper.GetString("genre")
	}
	if viper.IsSet("session_duration") {
		if d, err := time.ParseDuration(viper.GetString("session_duration")); err == nil {
			cfg.SessionDuration = d
		}
	}
	if viper.IsSet("music_sensitivity") {
		cfg.MusicSensitivity = viper.GetInt("music_sensitivity")
	}
	if viper.IsSet("image_interval") {
		cfg.ImageInterval = viper.GetInt("image_interval")
	}
	if viper.IsSet("image_queue_delay") {
		if d, err := time.ParseDuration(viper.GetString("image_queue_delay")); err == nil {
			cfg.ImageQueueDelay = d
		}
	}
	if viper.IsSet("seconds_per_sentence") {
		cfg.SecondsPerSentence = viper.GetInt("seconds_per_sentence")
	}
	if viper.IsSet("sentences_per_chapter") {
		cfg.SentencesPerChapter = viper.GetInt("sentences_per_chapter")
	}
	if viper.IsSet("min_time_buffer_ratio") {
		cfg.MinTimeBufferRatio = viper.GetFloat64("min_time_buffer_ratio")
	}
	if viper.IsSet("lookahead") {
		cfg.Lookahead = viper.GetInt("lookahead")
	}
	if viper.IsSet("retry_attempts") {
		cfg.RetryAttempts = viper.GetInt("retry_attempts")
	}
	if viper.IsSet("retry_delay") {
		if d, err := time.ParseDuration(viper.GetString("retry_delay")); err == nil {
			cfg.RetryDelay = d
		}
	}

	cfg.Gateway = loadGatewayConfig(cfg.Gateway)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadGatewayConfig(cfg GatewayConfig) GatewayConfig {
	if viper.IsSet("gateway.text_model") {
		cfg.TextModel = viper.GetString("gateway.text_model")
	}
	if viper.IsSet("gateway.voice_model") {
		cfg.VoiceModel = viper.GetString("gateway.voice_model")
	}
	if viper.IsSet("gateway.image_model") {
		cfg.ImageModel = viper.GetString("gateway.image_model")
	}
	if viper.IsSet("gateway.timeout") {
		if d, err := time.ParseDuration(viper.GetString("gateway.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg
}

// SetDefaults seeds Viper with default values so the config subcommand can
// render a complete file.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("voice", defaults.Voice)
	viper.SetDefault("accent", defaults.Accent)
	viper.SetDefault("genre", defaults.Genre)
	viper.SetDefault("session_duration", defaults.SessionDuration.String())
	viper.SetDefault("music_sensitivity", defaults.MusicSensitivity)
	viper.SetDefault("image_interval", defaults.ImageInterval)
	viper.SetDefault("image_queue_delay", defaults.ImageQueueDelay.String())
	viper.SetDefault("seconds_per_sentence", defaults.SecondsPerSentence)
	viper.SetDefault("sentences_per_chapter", defaults.SentencesPerChapter)
	viper.SetDefault("min_time_buffer_ratio", defaults.MinTimeBufferRatio)
	viper.SetDefault("lookahead", defaults.Lookahead)
	viper.SetDefault("retry_attempts", defaults.RetryAttempts)
	viper.SetDefault("retry_delay", defaults.RetryDelay.String())

	viper.SetDefault("gateway.text_model", defaults.Gateway.TextModel)
	viper.SetDefault("gateway.voice_model", defaults.Gateway.VoiceModel)
	viper.SetDefault("gateway.image_model", defaults.Gateway.ImageModel)
	viper.SetDefault("gateway.timeout", defaults.Gateway.Timeout.String())
}
