package story

import (
	"fmt"
	"strings"
	"time"
)

// Voices recognized by the speech backend. Each maps to a narrator persona.
var Voices = []string{"aria", "orion", "luna", "atlas", "sage"}

// Accents recognized by the speech backend.
var Accents = []string{"neutral", "british", "irish", "southern", "australian"}

// Genres used to frame the system instruction for chapter generation.
var Genres = []string{"fantasy", "scifi", "mystery", "fairytale", "adventure", "cosmic-horror"}

// Config contains all session configuration options.
type Config struct {
	// Narration settings. Env vars override file values when present; no
	// envDefault tags, defaults come from DefaultConfig so the environment
	// never clobbers a file-loaded value.
	Voice  string `yaml:"voice" env:"DREAMWEAVER_VOICE"`
	Accent string `yaml:"accent" env:"DREAMWEAVER_ACCENT"`
	Genre  string `yaml:"genre" env:"DREAMWEAVER_GENRE"`

	// Session settings
	SessionDuration time.Duration `yaml:"session_duration" env:"DREAMWEAVER_SESSION_DURATION"`

	// Music settings. Sensitivity 1-5 controls how strong a keyword signal
	// must be before the mood switches away from the current track:
	// threshold = max(1, 5-sensitivity).
	MusicSensitivity int `yaml:"music_sensitivity" env:"DREAMWEAVER_MUSIC_SENSITIVITY"`

	// Visuals settings
	ImageInterval   int           `yaml:"image_interval" env:"DREAMWEAVER_IMAGE_INTERVAL"`
	ImageQueueDelay time.Duration `yaml:"image_queue_delay" env:"DREAMWEAVER_IMAGE_QUEUE_DELAY"`

	// Scheduler settings
	SecondsPerSentence  int     `yaml:"seconds_per_sentence" env:"DREAMWEAVER_SECONDS_PER_SENTENCE"`
	SentencesPerChapter int     `yaml:"sentences_per_chapter" env:"DREAMWEAVER_SENTENCES_PER_CHAPTER"`
	MinTimeBufferRatio  float64 `yaml:"min_time_buffer_ratio" env:"DREAMWEAVER_MIN_TIME_BUFFER_RATIO"`

	// Prefetch settings
	Lookahead     int           `yaml:"lookahead" env:"DREAMWEAVER_LOOKAHEAD"`
	RetryAttempts int           `yaml:"retry_attempts" env:"DREAMWEAVER_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"DREAMWEAVER_RETRY_DELAY"`

	// Gateway settings
	Gateway GatewayConfig `yaml:"gateway"`
}

// GatewayConfig contains generation-backend settings. The API key is
// environment-only on purpose; it never belongs in the config file.
type GatewayConfig struct {
	APIKey     string        `yaml:"-" env:"DREAMWEAVER_API_KEY"`
	TextModel  string        `yaml:"text_model" env:"DREAMWEAVER_TEXT_MODEL"`
	VoiceModel string        `yaml:"voice_model" env:"DREAMWEAVER_VOICE_MODEL"`
	ImageModel string        `yaml:"image_model" env:"DREAMWEAVER_IMAGE_MODEL"`
	Timeout    time.Duration `yaml:"timeout" env:"DREAMWEAVER_GATEWAY_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Voice:  "aria",
		Accent: "neutral",
		Genre:  "fantasy",

		SessionDuration: 10 * time.Minute,

		MusicSensitivity: 3,

		ImageInterval:   4,
		ImageQueueDelay: time.Second,

		SecondsPerSentence:  8,
		SentencesPerChapter: 12,
		MinTimeBufferRatio:  0.5,

		Lookahead:     2,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,

		Gateway: GatewayConfig{
			TextModel:  "gemini-2.5-flash",
			VoiceModel: "gemini-2.5-flash-preview-tts",
			ImageModel: "imagen-3.0-generate-002",
			Timeout:    45 * time.Second,
		},
	}
}

// MoodThreshold derives the music switch threshold from MusicSensitivity.
func (c *Config) MoodThreshold() int {
	t := 5 - c.MusicSensitivity
	if t < 1 {
		t = 1
	}
	return t
}

// EstimatedChapterDuration returns the scheduler's chapter duration estimate.
func (c *Config) EstimatedChapterDuration() time.Duration {
	return time.Duration(c.SentencesPerChapter*c.SecondsPerSentence) * time.Second
}

// Validate checks if the configuration is valid, normalizing enum casing.
func (c *Config) Validate() error {
	if err := validateEnum("voice", &c.Voice, Voices); err != nil {
		return err
	}
	if err := validateEnum("accent", &c.Accent, Accents); err != nil {
		return err
	}
	if err := validateEnum("genre", &c.Genre, Genres); err != nil {
		return err
	}

	if c.SessionDuration < time.Minute || c.SessionDuration > 2*time.Hour {
		return fmt.Errorf("session_duration must be between 1m and 2h, got %v", c.SessionDuration)
	}
	if c.MusicSensitivity < 1 || c.MusicSensitivity > 5 {
		return fmt.Errorf("music_sensitivity must be between 1 and 5, got %d", c.MusicSensitivity)
	}
	if c.ImageInterval < 1 || c.ImageInterval > 50 {
		return fmt.Errorf("image_interval must be between 1 and 50, got %d", c.ImageInterval)
	}
	if c.ImageQueueDelay < 100*time.Millisecond || c.ImageQueueDelay > time.Minute {
		return fmt.Errorf("image_queue_delay must be between 100ms and 1m, got %v", c.ImageQueueDelay)
	}
	if c.SecondsPerSentence < 1 || c.SecondsPerSentence > 60 {
		return fmt.Errorf("seconds_per_sentence must be between 1 and 60, got %d", c.SecondsPerSentence)
	}
	if c.SentencesPerChapter < 1 || c.SentencesPerChapter > 100 {
		return fmt.Errorf("sentences_per_chapter must be between 1 and 100, got %d", c.SentencesPerChapter)
	}
	if c.MinTimeBufferRatio <= 0 || c.MinTimeBufferRatio > 2.0 {
		return fmt.Errorf("min_time_buffer_ratio must be between 0 and 2.0, got %f", c.MinTimeBufferRatio)
	}
	if c.Lookahead < 0 || c.Lookahead > 10 {
		return fmt.Errorf("lookahead must be between 0 and 10, got %d", c.Lookahead)
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		return fmt.Errorf("retry_attempts must be between 1 and 10, got %d", c.RetryAttempts)
	}
	if c.Gateway.Timeout < time.Second {
		return fmt.Errorf("gateway timeout must be at least 1s, got %v", c.Gateway.Timeout)
	}
	return nil
}

func validateEnum(name string, value *string, allowed []string) error {
	for _, v := range allowed {
		if strings.EqualFold(*value, v) {
			*value = v
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %v", name, *value, allowed)
}
