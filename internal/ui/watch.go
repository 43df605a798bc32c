package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simdex/simdex/internal/orchestrator"
)

// tickInterval is how often the watch TUI polls the orchestrator for
// fresh corpus stats.
const tickInterval = 2 * time.Second

// Run starts the `simdex watch` TUI against idx and blocks until the
// user quits.
func Run(idx *orchestrator.Index) error {
	p := tea.NewProgram(newModel(idx))
	_, err := p.Run()
	return err
}

type tickMsg time.Time

type statsMsg struct {
	stats orchestrator.Stats
	err   error
}

// model is the bubbletea model backing `simdex watch`: it polls
// orchestrator.Stats on a timer and renders corpus size plus a
// per-band bucket-occupancy histogram.
type model struct {
	idx       *orchestrator.Index
	stats     orchestrator.Stats
	lastErr   error
	width     int
	tickCount int
}

func newModel(idx *orchestrator.Index) model {
	return model{idx: idx, width: 80}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(pollStats(m.idx), tick())
}

func pollStats(idx *orchestrator.Index) tea.Cmd {
	return func() tea.Msg {
		stats, err := idx.Stats()
		return statsMsg{stats: stats, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.tickCount++
		return m, tea.Batch(pollStats(m.idx), tick())
	case statsMsg:
		m.stats = msg.stats
		m.lastErr = msg.err
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" simdex watch — live corpus view ") + "\n\n")

	if m.lastErr != nil {
		b.WriteString(ErrorStyle.Render("error: "+m.lastErr.Error()) + "\n")
	}

	b.WriteString(RenderLabelValue("documents", fmt.Sprintf("%d", m.stats.DocumentCount)) + "\n")
	b.WriteString(RenderLabelValue("bands", fmt.Sprintf("%d", len(m.stats.BandBucketCounts))) + "\n\n")

	b.WriteString(StatsPanelStyle.Render(renderBandHistogram(m.stats.BandBucketCounts)) + "\n")

	b.WriteString(FooterStyle.Render(RenderHelp("q", "quit") + "  " + RenderHelp("esc", "quit")))

	return BaseStyle.Render(b.String())
}

// renderBandHistogram draws one bar per band, proportional to its
// bucket count relative to the busiest band.
func renderBandHistogram(counts []int) string {
	if len(counts) == 0 {
		return "no bands indexed yet"
	}

	max := 1
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	var b strings.Builder
	const barWidth = 30
	for band, c := range counts {
		filled := (c * barWidth) / max
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		fmt.Fprintf(&b, "band %2d │%s│ %d\n", band, bar, c)
	}
	return b.String()
}
