package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/config"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()

	var actual, pred trajectory.Trajectory
	for i := int64(0); i < 40; i++ {
		actual = append(actual, trajectory.Sample{Time: i * 10, Latitude: float64(i) * 0.01})
		pred = append(pred, trajectory.Sample{Time: i * 10, Latitude: float64(i)*0.01 + 0.5})
	}
	aligned, err := trajectory.ComputeAligned(actual, pred)
	require.NoError(t, err)
	devs := trajectory.Deviations(aligned)
	summary, err := trajectory.Summarize(devs)
	require.NoError(t, err)

	return &pipeline.Result{
		GroundTruth: "actual",
		Metric:      trajectory.PlanarDegrees,
		Comparisons: []*pipeline.Comparison{
			{Source: "cambridge", Label: "Cambridge", Alignments: aligned, Deviations: devs, Summary: summary},
			{Source: "astra", Label: "ASTRA", Err: trajectory.ErrOutOfRange},
		},
	}
}

func fixedRunner(result *pipeline.Result, err error) runner {
	return func(ctx context.Context, cfg *config.Config, opts pipeline.Options) (*pipeline.Result, error) {
		opts.Logf("✓ loaded %d comparisons", 2)
		return result, err
	}
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T) model {
	t.Helper()
	m := newModel(config.DefaultConfig(), fixedRunner(testResult(t), nil))
	msg := m.Init()()
	return update(t, m, msg)
}

func TestModel_LoadsResult(t *testing.T) {
	m := newModel(config.DefaultConfig(), fixedRunner(testResult(t), nil))
	assert.Contains(t, m.View(), "Analyzing")

	m = update(t, m, m.Init()())
	assert.False(t, m.loading)
	require.NotNil(t, m.result)
	assert.Equal(t, []string{"✓ loaded 2 comparisons"}, m.logs)

	view := m.View()
	assert.Contains(t, view, "ground truth: actual")
	assert.Contains(t, view, "Cambridge")
	assert.Contains(t, view, "The mean deviation in the Cambridge prediction is: 0.5")
}

func TestModel_SelectFailedComparison(t *testing.T) {
	m := loaded(t)

	m = update(t, m, key("j"))
	assert.Equal(t, 1, m.selected)
	assert.Contains(t, m.footer(), "ASTRA")
	assert.Contains(t, m.footer(), "outside reference range")

	// Selection stops at the last entry
	m = update(t, m, key("down"))
	assert.Equal(t, 1, m.selected)

	m = update(t, m, key("k"))
	assert.Equal(t, 0, m.selected)
}

func TestModel_ScrollTable(t *testing.T) {
	m := loaded(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 18})
	rows := m.visibleRows()
	require.Equal(t, 10, rows)

	// Keys move the list until focus switches
	m = update(t, m, key("tab"))
	assert.Equal(t, paneTable, m.focus)

	m = update(t, m, key("j"))
	assert.Equal(t, 1, m.offset)
	assert.Contains(t, m.renderTable(), formatAlignment(m.current().Alignments[1]))
	assert.NotContains(t, m.renderTable(), formatAlignment(m.current().Alignments[0]))

	m = update(t, m, key("G"))
	assert.Equal(t, 40-rows, m.offset)

	m = update(t, m, key("g"))
	assert.Equal(t, 0, m.offset)

	m = update(t, m, key("up"))
	assert.Equal(t, 0, m.offset)
}

func TestModel_Error(t *testing.T) {
	m := newModel(config.DefaultConfig(), fixedRunner(nil, pipeline.ErrGroundTruthUnavailable))
	m = update(t, m, m.Init()())

	assert.True(t, errors.Is(m.err, pipeline.ErrGroundTruthUnavailable))
	assert.Contains(t, m.View(), "r: retry")
}

func TestModel_ToggleLogs(t *testing.T) {
	m := loaded(t)

	m = update(t, m, key("l"))
	assert.True(t, m.showLogs)
	assert.Contains(t, m.View(), "✓ loaded 2 comparisons")
}

func TestModel_Quit(t *testing.T) {
	m := loaded(t)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.True(t, strings.HasSuffix(truncate("a much longer prediction label", 10), "…"))
	assert.Len(t, []rune(truncate("a much longer prediction label", 10)), 10)
}
