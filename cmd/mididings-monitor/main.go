// Command mididings-monitor is a dev tool: it opens the configured ports,
// runs its own Engine with a single pass-through scene, and renders that
// Engine's snapshots: scene state, note/sustain occupancy, and recent
// sanitiser diagnostics. It does not attach to an Engine in another
// process.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsacre/mididings-go/backend"
	"github.com/dsacre/mididings-go/config"
	"github.com/dsacre/mididings-go/engine"
	"github.com/dsacre/mididings-go/patch"
	"github.com/dsacre/mididings-go/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mididings-monitor: %v\n", err)
		os.Exit(1)
	}

	var logger *telemetry.Logger
	if cfg.LogPath != "" {
		logger, err = telemetry.New(cfg.LogPath, 256)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mididings-monitor: %v\n", err)
			os.Exit(1)
		}
		defer logger.Close()
	}

	b, err := backend.OpenPortMIDI(cfg.InputPort.Name, cfg.OutputPort.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mididings-monitor: %v\n", err)
		os.Exit(1)
	}
	defer b.Stop()

	e := engine.New(b, cfg.MaxSimultaneousNotes, cfg.MaxSustainPedals, cfg.Verbose, logger)
	e.AddScene(0, patch.Identity, nil, nil)
	e.Start(nil, nil)
	defer e.Stop()

	m := newModel(e)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mididings-monitor: %v\n", err)
		os.Exit(1)
	}
}

// model renders the most recent engine.Stats snapshot it has seen.
type model struct {
	engine   *engine.Engine
	stats    engine.Stats
	quitting bool
}

// statsMsg wraps an engine.Stats snapshot as a bubbletea message.
type statsMsg engine.Stats

func newModel(e *engine.Engine) model {
	return model{engine: e}
}

// listenForStats blocks on the engine's snapshot channel, the same
// blocking-channel tea.Cmd pattern the teacher's tui.ListenForUpdates
// uses against sequencer.Manager.UpdateChan.
func listenForStats(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		return statsMsg(<-e.Snapshots())
	}
}

func (m model) Init() tea.Cmd {
	return listenForStats(m.engine)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case statsMsg:
		m.stats = engine.Stats(msg)
		return m, listenForStats(m.engine)
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	header := headerStyle.Render(fmt.Sprintf(
		"mididings-monitor  scene %d.%d  t=%.1fs",
		m.stats.Scene, m.stats.Subscene, m.stats.Timestamp,
	))

	occupancy := fmt.Sprintf("held notes: %-4d  held sustains: %-4d", m.stats.HeldNotes, m.stats.HeldSustains)

	var recent string
	if len(m.stats.Recent) == 0 {
		recent = dimStyle.Render("(no diagnostics yet)")
	} else {
		start := 0
		if n := len(m.stats.Recent); n > 5 {
			start = n - 5
		}
		for _, rec := range m.stats.Recent[start:] {
			recent += warnStyle.Render(fmt.Sprintf("[%s] %s", rec.Category, rec.Message)) + "\n"
		}
	}

	return fmt.Sprintf("\n%s\n\n%s\n\n%s\n%s\n", header, occupancy, recent, dimStyle.Render("q: quit"))
}
