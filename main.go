// Package main provides the entry point for the Dreamweaver CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dreamweaver/dreamweaver/gateway"
	gwmock "github.com/dreamweaver/dreamweaver/gateway/mock"
	"github.com/dreamweaver/dreamweaver/story"
	"github.com/dreamweaver/dreamweaver/story/audio"
	"github.com/dreamweaver/dreamweaver/story/sentence"
	"github.com/dreamweaver/dreamweaver/story/visuals"
	"github.com/dreamweaver/dreamweaver/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	duration   time.Duration
	voice      string
	accent     string
	genre      string
	engine     string
	noUI       bool
	logFile    string

	keyword = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render

	rootCmd = &cobra.Command{
		Use:   "dreamweaver [PREMISE]",
		Short: "Narrated bedtime stories, generated while you listen",
		Long: paragraph(fmt.Sprintf(
			"\nGive Dreamweaver a premise and it weaves a %s: chapters written as you listen, read aloud sentence by sentence, with illustrations and mood music.",
			keyword("living story"),
		)),
		Example:       "dreamweaver \"a fox who collects lost stars\"\ndreamweaver --genre scifi --duration 15m",
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          execute,
	}
)

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

func execute(cmd *cobra.Command, args []string) error {
	premise := "Tell me a gentle bedtime story about a place no one has ever seen."
	if len(args) == 1 && args[0] != "" {
		premise = args[0]
	}

	cfg, err := story.LoadConfigFromViper()
	if err != nil {
		return err
	}

	// Environment overrides sit between the config file and flags.
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}

	if cmd.Flags().Changed("duration") {
		cfg.SessionDuration = duration
	}
	if cmd.Flags().Changed("voice") {
		cfg.Voice = voice
	}
	if cmd.Flags().Changed("accent") {
		cfg.Accent = accent
	}
	if cmd.Flags().Changed("genre") {
		cfg.Genre = genre
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var gw story.Gateway
	switch engine {
	case "mock":
		gw = gwmock.New()
	case "", "gemini":
		if cfg.Gateway.APIKey == "" {
			return errors.New("no API key: set DREAMWEAVER_API_KEY, or try --engine mock")
		}
		gw = gateway.NewGemini(cfg)
	default:
		return fmt.Errorf("unknown engine %q (use gemini or mock)", engine)
	}

	player := newPlayer()
	cache := audio.NewCache(gw, cfg)
	library := visuals.NewLibrary(gw, cfg)
	seg := sentence.NewSegmenter()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if noUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(ctx, gw, player, seg, cache, library, cfg, premise)
	}
	return runUI(ctx, gw, player, seg, cache, library, cfg, premise)
}

// newPlayer opens the audio device, falling back to silent pacing when no
// device is available (CI, containers, servers).
func newPlayer() story.AudioPlayer {
	p, err := audio.NewPlayer(24000, 1)
	if err != nil {
		log.Warn("no audio device, pacing silently", "err", err)
		return audio.NewNullPlayer()
	}
	return p
}

func runUI(ctx context.Context, gw story.Gateway, player story.AudioPlayer, seg story.Segmenter, cache story.AudioCache, library story.ImageLibrary, cfg story.Config, premise string) error {
	var prog *tea.Program
	sink := func(msg interface{}) {
		if prog != nil {
			prog.Send(msg)
		}
	}

	controller := story.NewController(gw, player, seg, cache, library, cfg, sink)
	prog = tea.NewProgram(ui.New(controller, cfg.SessionDuration), tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Start(ctx, premise)
	}()

	if _, err := prog.Run(); err != nil {
		controller.Shutdown()
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	controller.Shutdown()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runHeadless(ctx context.Context, gw story.Gateway, player story.AudioPlayer, seg story.Segmenter, cache story.AudioCache, library story.ImageLibrary, cfg story.Config, premise string) error {
	logger := log.WithPrefix("session")
	sink := func(msg interface{}) {
		switch m := msg.(type) {
		case story.ChapterStartedMsg:
			logger.Info("chapter", "number", m.Number, "title", m.Title)
		case story.NowPlayingMsg:
			logger.Info("narrating", "index", m.Index, "text", m.Text)
		case story.SentenceSkippedMsg:
			logger.Warn("skipped", "index", m.Index)
		case story.NowShowingMsg:
			logger.Info("illustration", "index", m.Index, "bytes", len(m.Data))
		case story.MusicChangedMsg:
			logger.Info("music", "track", m.TrackName, "score", m.Score)
		case story.ErrorMsg:
			logger.Error("error", "err", m.Err, "blocking", m.Blocking)
		case story.SessionEndedMsg:
			logger.Info("ended", "reason", m.Reason, "chapters", m.Chapters, "sentences", m.Sentences)
		}
	}

	controller := story.NewController(gw, player, seg, cache, library, cfg, sink)
	if err := controller.Start(ctx, premise); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		controller.Stop()
		<-controller.Done()
	case <-controller.Done():
	}
	controller.Shutdown()
	return nil
}

func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)
	if logFile == "" {
		logFile = os.Getenv("DREAMWEAVER_LOG")
	}
	if logFile == "" {
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	return f.Close, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Minute, "how long the story should run")
	rootCmd.Flags().StringVarP(&voice, "voice", "v", "aria", "narrator voice (aria/orion/luna/atlas/sage)")
	rootCmd.Flags().StringVar(&accent, "accent", "neutral", "narrator accent (neutral/british/irish/southern/australian)")
	rootCmd.Flags().StringVarP(&genre, "genre", "g", "fantasy", "story genre")
	rootCmd.Flags().StringVar(&engine, "engine", "gemini", "generation engine (gemini/mock)")
	rootCmd.Flags().BoolVar(&noUI, "no-ui", false, "log events instead of drawing the TUI")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write debug logs to this file")

	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("accent", rootCmd.Flags().Lookup("accent"))
	_ = viper.BindPFlag("genre", rootCmd.Flags().Lookup("genre"))
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))

	story.SetDefaults()

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "dreamweaver")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "dreamweaver")}, dirs...)
	}
	if c := os.Getenv("DREAMWEAVER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("dreamweaver")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("dreamweaver")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "dreamweaver.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
