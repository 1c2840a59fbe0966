package view

import (
	"bytes"

	"github.com/logrusorgru/aurora"

	"triautomata/src/automaton"
)

const cellGlyph = "█"

//palette renders green, yellow and black cells
var palette = [automaton.NumStates]string{
	aurora.Green(cellGlyph).BgGreen().String(),
	aurora.Yellow(cellGlyph).BgYellow().String(),
	aurora.Black(cellGlyph).BgBlack().String(),
}

var stateNames = [automaton.NumStates]string{"green", "yellow", "black"}

//StateName returns the color name a state is rendered with
func StateName(s automaton.State) string {
	if !s.Valid() {
		return "invalid"
	}
	return stateNames[s]
}

//colorize renders a state name in its own color
func colorize(s automaton.State) string {
	switch s {
	case automaton.StateGreen:
		return aurora.Green(StateName(s)).String()
	case automaton.StateYellow:
		return aurora.Yellow(StateName(s)).String()
	default:
		return aurora.Black(StateName(s)).BgWhite().String()
	}
}

//RenderText renders the grid as rows of state digits
func RenderText(grid [][]automaton.State) string {
	var b bytes.Buffer
	for i, row := range grid {
		if i != 0 {
			b.WriteByte('\n')
		}
		for _, s := range row {
			b.WriteByte('0' + byte(s))
		}
	}
	return b.String()
}

//renderField renders at most maxW x maxH cells with the color palette
//crop reports whether the grid did not fit
func renderField(grid [][]automaton.State, maxW, maxH int) (out string, crop bool) {
	var b bytes.Buffer
	crop = len(grid) > maxH || (len(grid) > 0 && len(grid[0]) > maxW)
	for i, row := range grid {
		if i >= maxH {
			break
		}
		if i != 0 {
			b.WriteByte('\n')
		}
		if crop && i == maxH-1 {
			b.WriteString(aurora.Red("The field size is larger than the viewing area").BgBlack().String())
			break
		}
		for j, s := range row {
			if j >= maxW {
				break
			}
			b.WriteString(palette[s])
		}
	}
	return b.String(), crop
}

//cellAt maps a cursor position inside the field view to a grid cell
//positions outside the n x n grid are rejected
func cellAt(cx, cy, ox, oy, n int) (row, col int, ok bool) {
	row, col = cy+oy, cx+ox
	if row < 0 || col < 0 || row >= n || col >= n {
		return 0, 0, false
	}
	return row, col, true
}
