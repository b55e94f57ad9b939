// Package ui renders the listening view: current chapter and sentence, the
// session clock, mood, and illustration status.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dreamweaver/dreamweaver/story"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	chapterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Italic(true)
	sentenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(72)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	moodStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).MarginTop(1)
)

// Controls is the slice of the playback controller the view drives.
type Controls interface {
	Pause() error
	Resume() error
	Stop()
}

// Model is the Bubble Tea model for a running session.
type Model struct {
	controls Controls

	spinner  spinner.Model
	progress progress.Model

	state      story.StateType
	chapter    string
	chapterNum int
	sentence   string
	mood       string
	moodIcon   string
	imageNote  string
	remaining  time.Duration
	total      time.Duration
	generating bool
	paused     bool
	lastErr    string
	endReason  string
	sentences  int
	chapters   int
}

// New creates the listening view bound to a controller.
func New(controls Controls, sessionDuration time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return Model{
		controls:  controls,
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		state:     story.StateInitializing,
		remaining: sessionDuration,
		total:     sessionDuration,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses and controller events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.controls.Stop()
			return m, nil
		case " ":
			if m.paused {
				if err := m.controls.Resume(); err == nil {
					m.paused = false
				}
			} else {
				if err := m.controls.Pause(); err == nil {
					m.paused = true
				}
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case story.StateChangedMsg:
		m.state = msg.State
		m.paused = msg.State == story.StatePaused
		return m, nil

	case story.ChapterStartedMsg:
		m.chapter = msg.Title
		m.chapterNum = msg.Number
		m.generating = false
		return m, nil

	case story.GeneratingChapterMsg:
		m.generating = true
		return m, nil

	case story.NowPlayingMsg:
		m.sentence = msg.Text
		return m, nil

	case story.SentenceSkippedMsg:
		m.sentence = dimStyle.Render("(skipped a sentence)")
		return m, nil

	case story.NowShowingMsg:
		m.imageNote = fmt.Sprintf("illustration %d · %s", msg.Index, humanize.Bytes(uint64(len(msg.Data))))
		return m, nil

	case story.MusicChangedMsg:
		m.mood = msg.TrackName
		m.moodIcon = msg.Icon
		return m, nil

	case story.ClockTickMsg:
		m.remaining = msg.Remaining
		return m, nil

	case story.ErrorMsg:
		m.lastErr = msg.Err.Error()
		if msg.Blocking {
			return m, tea.Quit
		}
		return m, nil

	case story.SessionEndedMsg:
		m.endReason = msg.Reason
		m.chapters = msg.Chapters
		m.sentences = msg.Sentences
		return m, tea.Quit
	}

	return m, nil
}

// View renders the session.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Dreamweaver"))
	b.WriteString("\n\n")

	if m.chapter != "" {
		b.WriteString(chapterStyle.Render(fmt.Sprintf("Chapter %d · %s", m.chapterNum, m.chapter)))
		b.WriteString("\n\n")
	}

	switch {
	case m.endReason != "":
		b.WriteString(fmt.Sprintf("The story is over (%s): %d chapters, %d sentences.\n",
			m.endReason, m.chapters, m.sentences))
	case m.state == story.StateInitializing:
		b.WriteString(m.spinner.View() + " weaving the first chapter...\n")
	case m.state == story.StateStalled:
		b.WriteString(m.spinner.View() + " waiting for the next chapter...\n")
	case m.paused:
		b.WriteString(dimStyle.Render("⏸ paused") + "\n")
	default:
		b.WriteString(sentenceStyle.Render(m.sentence))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.total > 0 {
		frac := 1.0 - float64(m.remaining)/float64(m.total)
		b.WriteString(m.progress.ViewAs(frac))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s left", m.remaining.Round(time.Second))))
		b.WriteString("\n")
	}

	var status []string
	if m.mood != "" {
		status = append(status, moodStyle.Render(m.moodIcon+" "+m.mood))
	}
	if m.imageNote != "" {
		status = append(status, dimStyle.Render(m.imageNote))
	}
	if m.generating {
		status = append(status, dimStyle.Render("weaving next chapter..."))
	}
	if len(status) > 0 {
		b.WriteString(strings.Join(status, "  ·  "))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString(errStyle.Render("! " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space pause/resume · q quit"))
	b.WriteString("\n")
	return b.String()
}
