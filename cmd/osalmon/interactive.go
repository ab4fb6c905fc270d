package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/osal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	counterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type monitorModel struct {
	err     error
	w       *workload
	cfg     workloadConfig
	spin    spinner.Model
	snap    osal.Diag
	recent  []osal.ObservedError
	started time.Time
	paused  bool
}

type tickMsg time.Time

type startedMsg struct {
	err error
	w   *workload
}

func newMonitorModel(cfg workloadConfig) *monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return &monitorModel{cfg: cfg, spin: sp, started: time.Now()}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.startWorkload, m.spin.Tick, tick())
}

func (m *monitorModel) startWorkload() tea.Msg {
	w, err := startWorkload(m.cfg)
	return startedMsg{w: w, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.w != nil {
				_ = m.w.stop()
			}
			return m, tea.Quit

		case "p":
			// Pausing only freezes the display; the workload keeps running.
			m.paused = !m.paused
		}

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.w = msg.w

	case tickMsg:
		if m.w != nil && !m.paused {
			m.snap = m.w.o.Snapshot()
			m.recent = m.w.o.RecentErrors()
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *monitorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.w == nil {
		return m.spin.View() + " Starting workload..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("OSAL Monitor"))
	b.WriteString(fmt.Sprintf(" up %s %s\n\n",
		time.Since(m.started).Round(time.Second), m.spin.View()))

	b.WriteString(counterStyle.Render(fmt.Sprintf(
		"produced %d   consumed %d   dropped %d   heartbeats %d",
		m.w.produced.Load(), m.w.consumed.Load(),
		m.w.dropped.Load(), m.w.heartbeats.Load())))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %6s %6s %6s", "kind", "in-use", "cap", "peak")))
	b.WriteString("\n")
	for _, row := range []struct {
		name string
		ks   osal.KindStats
	}{
		{"tasks", m.snap.Tasks},
		{"mutexes", m.snap.Mutexes},
		{"semaphores", m.snap.Semaphores},
		{"queues", m.snap.Queues},
		{"events", m.snap.EventGroups},
		{"timers", m.snap.Timers},
	} {
		b.WriteString(kindStyle.Render(fmt.Sprintf("%-12s", row.name)))
		b.WriteString(fmt.Sprintf(" %6d %6d %6d\n", row.ks.InUse, row.ks.Capacity, row.ks.Watermark))
	}

	b.WriteString(fmt.Sprintf("\nmemory: %d bytes in %d blocks (peak %d)\n",
		m.snap.Memory.CurrentBytes, m.snap.Memory.CurrentBlocks, m.snap.Memory.PeakBytes))

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Recent errors:"))
		b.WriteString("\n")
		show := m.recent
		if len(show) > 5 {
			show = show[len(show)-5:]
		}
		for _, e := range show {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  %s %s: %v",
				e.At.Format(time.TimeOnly), e.Op, e.Err)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	pause := "p pause display"
	if m.paused {
		pause = "p resume display"
	}
	b.WriteString(helpStyle.Render(pause + " • q quit"))

	return b.String()
}

func runInteractive(cfg workloadConfig) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	p := tea.NewProgram(newMonitorModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
