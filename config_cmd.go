package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# narrator voice: aria, orion, luna, atlas, sage
voice: "aria"
# narrator accent: neutral, british, irish, southern, australian
accent: "neutral"
# story genre: fantasy, scifi, mystery, fairytale, adventure, cosmic-horror
genre: "fantasy"
# how long a session runs
session_duration: "10m"

# how eagerly the music follows the prose (1 = sticky, 5 = twitchy)
music_sensitivity: 3
# show an illustration every N sentences
image_interval: 4
# minimum spacing between background image generations
image_queue_delay: "1s"

# chapter pacing estimates
seconds_per_sentence: 8
sentences_per_chapter: 12
# generate the next chapter only while at least this fraction of a
# chapter's estimated playback time remains
min_time_buffer_ratio: 0.5

# how many sentences of narration to synthesize ahead of playback
lookahead: 2
# retry policy for generation calls
retry_attempts: 3
retry_delay: "500ms"

gateway:
  # the API key is taken from the DREAMWEAVER_API_KEY environment
  # variable and never read from this file
  text_model: "gemini-2.5-flash"
  voice_model: "gemini-2.5-flash-preview-tts"
  image_model: "imagen-3.0-generate-002"
  timeout: "45s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Show the dreamweaver config file",
	Long:    paragraph(fmt.Sprintf("\n%s the dreamweaver config file path, creating a default config if none exists.", keyword("Print"))),
	Example: "dreamweaver config\ndreamweaver config --config path/to/config.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}
		fmt.Println(configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
