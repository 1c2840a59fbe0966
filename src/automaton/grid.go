package automaton

import "fmt"

//Grid is a square toroidal board of cell states
//rows share a single backing slice, row-major
type Grid struct {
	n     int
	cells []State
	rows  [][]State
}

//NewGrid allocates a size x size grid with every cell in StateGreen (0)
func NewGrid(size int) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: grid size %d must be positive", ErrInvalidArgument, size)
	}
	return newGrid(size), nil
}

func newGrid(n int) *Grid {
	g := &Grid{n: n, cells: make([]State, n*n), rows: make([][]State, n)}
	for i := range g.rows {
		start := n * i
		g.rows[i] = g.cells[start : start+n : start+n]
	}
	return g
}

//Size returns the side length of the grid
func (g *Grid) Size() int { return g.n }

//Get returns the state at row, col
func (g *Grid) Get(row, col int) (State, error) {
	if err := g.checkBounds(row, col); err != nil {
		return 0, err
	}
	return g.rows[row][col], nil
}

//Set writes a single cell; the grid is untouched on error
func (g *Grid) Set(row, col int, s State) error {
	if err := checkState(s); err != nil {
		return err
	}
	if err := g.checkBounds(row, col); err != nil {
		return err
	}
	g.rows[row][col] = s
	return nil
}

//Fill sets every cell to s
func (g *Grid) Fill(s State) error {
	if err := checkState(s); err != nil {
		return err
	}
	for i := range g.cells {
		g.cells[i] = s
	}
	return nil
}

//Wrap maps any row or column index onto [0, size) toroidally
func (g *Grid) Wrap(i int) int {
	return (i%g.n + g.n) % g.n
}

//Snapshot returns a deep copy of the rows
func (g *Grid) Snapshot() [][]State {
	return g.Clone().rows
}

//Clone returns an independent copy of the grid
func (g *Grid) Clone() *Grid {
	c := newGrid(g.n)
	copy(c.cells, g.cells)
	return c
}

//equal reports whether both grids have the same size and cells
func (g *Grid) equal(o *Grid) bool {
	if o == nil || g.n != o.n {
		return false
	}
	for i, s := range g.cells {
		if o.cells[i] != s {
			return false
		}
	}
	return true
}

//Counts returns the number of cells in each state
func (g *Grid) Counts() (counts [NumStates]int) {
	for _, s := range g.cells {
		counts[s]++
	}
	return
}

//diff counts the cells that differ between g and o, both of the same size
func (g *Grid) diff(o *Grid) int {
	n := 0
	for i, s := range g.cells {
		if o.cells[i] != s {
			n++
		}
	}
	return n
}

func (g *Grid) checkBounds(row, col int) error {
	if row < 0 || row >= g.n || col < 0 || col >= g.n {
		return fmt.Errorf("%w: cell (%d,%d) outside %dx%d grid", ErrOutOfBounds, row, col, g.n, g.n)
	}
	return nil
}
