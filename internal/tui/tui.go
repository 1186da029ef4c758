// Package tui is a terminal front end for the story player.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"storyworld/internal/player"
	"storyworld/internal/reveal"
	"storyworld/internal/story"
)

const frameBuffer = 64

type frameMsg reveal.Frame

type styles struct {
	Title  lipgloss.Style
	Past   lipgloss.Style
	Typing lipgloss.Style
	Choice lipgloss.Style
	End    lipgloss.Style
	Banner lipgloss.Style
	Help   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1),
		Past:   lipgloss.NewStyle().Faint(true),
		Typing: lipgloss.NewStyle(),
		Choice: lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		End:    lipgloss.NewStyle().Bold(true),
		Banner: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Help:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

// Model plays one story in the terminal. Keys 1-9 pick a choice, r restarts
// and q quits.
type Model struct {
	ctrl   *player.Controller
	frames chan reveal.Frame
	styles styles

	snap    player.Snapshot
	episode uint64
	typed   string
	banner  string
	width   int
}

// New starts playing game. Frames of the typing animation arrive as tea
// messages once the program runs.
func New(game *player.Game, interval time.Duration, logger *zap.Logger, opts ...reveal.Option) *Model {
	frames := make(chan reveal.Frame, frameBuffer)
	m := &Model{
		frames: frames,
		styles: defaultStyles(),
	}
	m.ctrl = player.NewController(game, player.ControllerConfig{
		Interval: interval,
		Sink: func(ctx context.Context, f reveal.Frame) {
			select {
			case frames <- f:
			case <-ctx.Done():
			}
		},
		Logger:        logger,
		RevealOptions: opts,
	})
	m.apply(m.ctrl.Begin())
	return m
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForFrame
}

func (m *Model) waitForFrame() tea.Msg {
	return frameMsg(<-m.frames)
}

// Update satisfies tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if msg.Episode >= m.episode {
			m.episode = msg.Episode
			m.typed = msg.Text
		}
		return m, m.waitForFrame

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c", "esc":
		m.ctrl.Close()
		return tea.Quit
	case "r":
		m.banner = ""
		m.apply(m.ctrl.Restart())
		return nil
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		snap, err := m.ctrl.Choose(int(key[0] - '1'))
		if err != nil {
			m.banner = bannerFor(err)
			return nil
		}
		m.banner = ""
		m.apply(snap)
	}
	return nil
}

// apply takes a new snapshot. A newer episode clears the typed text.
func (m *Model) apply(snap player.Snapshot) {
	if snap.Episode > m.episode {
		m.episode = snap.Episode
		m.typed = ""
	}
	m.snap = snap
}

// View satisfies tea.Model.
func (m *Model) View() string {
	text := lipgloss.NewStyle()
	if m.width > 0 {
		text = text.Width(m.width)
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.snap.Title))
	b.WriteString("\n")
	for _, p := range m.snap.Past {
		b.WriteString(text.Inherit(m.styles.Past).Render(p))
		b.WriteString("\n\n")
	}
	b.WriteString(text.Inherit(m.styles.Typing).Render(m.typed))
	b.WriteString("\n\n")

	if m.snap.Ended {
		b.WriteString(m.styles.End.Render("The End"))
		b.WriteString("\n")
	}
	for i, c := range m.snap.Choices {
		b.WriteString(m.styles.Choice.Render(fmt.Sprintf("%d. %s", i+1, c.Text)))
		b.WriteString("\n")
	}
	if m.banner != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Banner.Render(m.banner))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render("1-9 choose • r restart • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Close stops the typing animation.
func (m *Model) Close() {
	m.ctrl.Close()
}

func bannerFor(err error) string {
	switch {
	case errors.Is(err, story.ErrBrokenLink):
		return "That path leads nowhere. Try another choice."
	case errors.Is(err, story.ErrInvalidChoice):
		return "That choice is not available."
	default:
		return "Something went wrong: " + err.Error()
	}
}

// Run plays game until the user quits.
func Run(ctx context.Context, game *player.Game, interval time.Duration, logger *zap.Logger) error {
	m := New(game, interval, logger)
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run terminal player: %w", err)
	}
	return nil
}
