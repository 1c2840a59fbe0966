package view

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triautomata/src/automaton"
	"triautomata/src/universe"
)

func TestRenderText(t *testing.T) {
	grid := [][]automaton.State{
		{automaton.StateGreen, automaton.StateYellow},
		{automaton.StateBlack, automaton.StateGreen},
	}
	assert.Equal(t, "01\n20", RenderText(grid))
	assert.Equal(t, "", RenderText(nil))
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "green", StateName(automaton.StateGreen))
	assert.Equal(t, "yellow", StateName(automaton.StateYellow))
	assert.Equal(t, "black", StateName(automaton.StateBlack))
	assert.Equal(t, "invalid", StateName(automaton.State(7)))
}

func TestCellAt(t *testing.T) {
	tests := []struct {
		cx, cy, ox, oy, n int
		row, col          int
		ok                bool
	}{
		{0, 0, 0, 0, 3, 0, 0, true},
		{2, 1, 0, 0, 3, 1, 2, true},
		{1, 1, 1, 1, 3, 2, 2, true},
		{3, 0, 0, 0, 3, 0, 0, false},
		{0, 2, 0, 1, 3, 0, 0, false},
		{-1, 0, 0, 0, 3, 0, 0, false},
	}
	for _, tt := range tests {
		row, col, ok := cellAt(tt.cx, tt.cy, tt.ox, tt.oy, tt.n)
		assert.Equal(t, tt.ok, ok, "cursor %d,%d origin %d,%d", tt.cx, tt.cy, tt.ox, tt.oy)
		assert.Equal(t, tt.row, row)
		assert.Equal(t, tt.col, col)
	}
}

func TestRenderField(t *testing.T) {
	g, err := automaton.NewGrid(4)
	require.NoError(t, err)

	out, crop := renderField(g.Snapshot(), 10, 10)
	assert.False(t, crop)
	assert.Equal(t, 16, strings.Count(out, cellGlyph))
	assert.Equal(t, 3, strings.Count(out, "\n"))

	out, crop = renderField(g.Snapshot(), 2, 3)
	assert.True(t, crop)
	assert.Contains(t, out, "larger than the viewing area")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestConsoleOut(t *testing.T) {
	opts := universe.DefaultUniverseOptions
	opts.Size = 3
	opts.Interval = 0
	b := &bytes.Buffer{}

	u, err := universe.NewBaseUniverse(&opts, nil)
	require.NoError(t, err)
	defer u.Close()

	c := NewConsoleOut(b)
	u.RegisterViewer(c)
	assert.Contains(t, b.String(), "Dimension: 3 x 3")
	assert.Contains(t, b.String(), "Rule set: Forest")

	c.Start()
	u.Run()
	for u.Running() {
		runtime.Gosched()
	}

	out := b.String()
	assert.Contains(t, out, "Finished:")
	assert.Contains(t, out, "Last iteration: 1")
	assert.Contains(t, out, "Cells green: 9")
	assert.True(t, strings.HasSuffix(out, "000\n000\n000\n"), out)
}
