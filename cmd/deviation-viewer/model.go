package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/config"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

type pane int

const (
	paneList pane = iota
	paneTable
)

// Rows reserved for title, table header, footer and borders
const chromeHeight = 8

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("86"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// runner produces a pipeline result; replaced in tests.
type runner func(ctx context.Context, cfg *config.Config, opts pipeline.Options) (*pipeline.Result, error)

type resultMsg struct {
	result *pipeline.Result
	logs   []string
	err    error
}

type model struct {
	cfg    *config.Config
	run    runner
	result *pipeline.Result
	logs   []string
	err    error

	loading  bool
	showLogs bool
	focus    pane
	selected int
	offset   int
	width    int
	height   int
}

func newModel(cfg *config.Config, run runner) model {
	return model{cfg: cfg, run: run, loading: true, height: 24, width: 100}
}

// analyze runs the pipeline in the background, collecting its log lines.
func (m model) analyze() tea.Cmd {
	cfg, run := m.cfg, m.run
	return func() tea.Msg {
		var (
			mu   sync.Mutex
			logs []string
		)
		opts := pipeline.Options{
			Logf: func(format string, args ...any) {
				mu.Lock()
				logs = append(logs, fmt.Sprintf(format, args...))
				mu.Unlock()
			},
		}
		result, err := run(context.Background(), cfg, opts)
		return resultMsg{result: result, logs: logs, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return m.analyze()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.loading = false
		m.result = msg.result
		m.logs = msg.logs
		m.err = msg.err
		m.selected = 0
		m.offset = 0
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.analyze()
		case "l":
			m.showLogs = !m.showLogs
		case "tab":
			if m.focus == paneList {
				m.focus = paneTable
			} else {
				m.focus = paneList
			}
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.visibleRows())
		case "pgdown":
			m.move(m.visibleRows())
		case "home", "g":
			m.move(-1 << 30)
		case "end", "G":
			m.move(1 << 30)
		}
	}
	return m, nil
}

func (m *model) move(delta int) {
	if m.focus == paneList {
		n := len(m.comparisons())
		if n == 0 {
			return
		}
		m.selected = clamp(m.selected+delta, 0, n-1)
		m.offset = 0
		return
	}
	m.offset += delta
	m.clampOffset()
}

func (m *model) clampOffset() {
	maxOffset := 0
	if cmp := m.current(); cmp != nil {
		maxOffset = len(cmp.Alignments) - m.visibleRows()
	}
	if maxOffset < 0 {
		maxOffset = 0
	}
	m.offset = clamp(m.offset, 0, maxOffset)
}

func (m model) visibleRows() int {
	rows := m.height - chromeHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m model) comparisons() []*pipeline.Comparison {
	if m.result == nil {
		return nil
	}
	return m.result.Comparisons
}

func (m model) current() *pipeline.Comparison {
	cmps := m.comparisons()
	if m.selected < 0 || m.selected >= len(cmps) {
		return nil
	}
	return cmps[m.selected]
}

func (m model) unit() string {
	if m.result == nil {
		return ""
	}
	return m.result.Metric.Unit()
}

func (m model) View() string {
	var s strings.Builder

	title := "FLIGHTPATH DEVIATION VIEWER"
	if m.result != nil {
		title += fmt.Sprintf(" | ground truth: %s | metric: %s", m.result.GroundTruth, m.result.Metric)
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	switch {
	case m.loading:
		s.WriteString("\n  Analyzing trajectories...\n")
		return s.String()
	case m.err != nil:
		s.WriteString(failedStyle.Render(fmt.Sprintf("\n  ⚠ %v\n", m.err)))
		s.WriteString(helpStyle.Render("\n  r: retry  q: quit\n"))
		return s.String()
	}

	if m.showLogs {
		s.WriteString(paneStyle.Render(m.renderLogs()))
	} else {
		list, table := paneStyle, paneStyle
		if m.focus == paneList {
			list = focusedPaneStyle
		} else {
			table = focusedPaneStyle
		}
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			list.Render(m.renderList()),
			table.Render(m.renderTable()),
		))
	}
	s.WriteString("\n")
	s.WriteString(footerStyle.Render(m.footer()))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓ j/k: move  tab: switch pane  pgup/pgdn: page  l: log  r: rerun  q: quit"))
	return s.String()
}

func (m model) renderList() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Predictions"))
	for i, cmp := range m.comparisons() {
		b.WriteString("\n")
		line := fmt.Sprintf(" %-20s", truncate(cmp.Label, 20))
		switch {
		case i == m.selected:
			b.WriteString(selectedStyle.Render(line))
		case !cmp.OK():
			b.WriteString(failedStyle.Render(line))
		default:
			b.WriteString(line)
		}
	}
	if len(m.comparisons()) == 0 {
		b.WriteString("\n (no predictions)")
	}
	return b.String()
}

func (m model) renderTable() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%5s %12s %10s %11s %10s %11s %12s",
		"#", "time", "lat", "lon", "ref lat", "ref lon", "dev "+m.unit())))

	cmp := m.current()
	if cmp == nil {
		return b.String()
	}
	if !cmp.OK() {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render(fmt.Sprintf(" %v", cmp.Err)))
		return b.String()
	}

	end := m.offset + m.visibleRows()
	if end > len(cmp.Alignments) {
		end = len(cmp.Alignments)
	}
	for _, a := range cmp.Alignments[m.offset:end] {
		b.WriteString("\n")
		b.WriteString(formatAlignment(a))
	}
	return b.String()
}

func formatAlignment(a trajectory.Alignment) string {
	return fmt.Sprintf("%5d %12d %10.5f %11.5f %10.5f %11.5f %12s",
		a.Index, a.Probe.Time,
		a.Probe.Latitude, a.Probe.Longitude,
		a.Reference.Latitude, a.Reference.Longitude,
		trajectory.FormatValue(a.Deviation))
}

func (m model) renderLogs() string {
	lines := m.logs
	if rows := m.visibleRows() + 1; len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	if len(lines) == 0 {
		return "(no log output)"
	}
	return strings.Join(lines, "\n")
}

func (m model) footer() string {
	cmp := m.current()
	if cmp == nil {
		return ""
	}
	if !cmp.OK() {
		return fmt.Sprintf("%s: %v", cmp.Label, cmp.Err)
	}
	text := cmp.Summary.Sentence(cmp.Label)
	if cmp.Skipped > 0 {
		text += fmt.Sprintf(" (%d samples outside the reference range)", cmp.Skipped)
	}
	return text
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
