package automaton

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	//DefMinRowsPerWorker is the smallest band of rows handed to one worker
	DefMinRowsPerWorker = 3
)

type direction int

const (
	horizontal direction = iota
	vertical
)

func (d direction) String() string {
	if d == horizontal {
		return "horizontal"
	}
	return "vertical"
}

//band is a half-open range of rows computed by one worker
type band struct {
	from, to int
}

//Engine owns a grid and advances it with the active rule set.
//
//A step runs two full passes. The horizontal pass computes every cell from
//its left and right neighbors in the current grid; the vertical pass then
//computes every cell from its up and down neighbors in the horizontal
//result. Each pass writes a separate buffer and the grid is replaced only
//after both passes succeed, so a failed step leaves no trace.
//
//Engine is not safe for concurrent use.
type Engine struct {
	grid         *Grid
	pass1, pass2 *Grid
	registry     *Registry
	rules        RuleSet
	workers      int
	bands        []band
	generation   int
	changed      int
}

//Option configures an Engine
type Option func(*Engine)

//WithWorkers splits each pass into row bands computed concurrently
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

//WithRegistry selects rule sets by name from r instead of the built-in registry
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

//NewEngine creates an all-green size x size engine running the named rule set
func NewEngine(size int, ruleSet string, opts ...Option) (*Engine, error) {
	g, err := NewGrid(size)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		grid:     g,
		pass1:    newGrid(size),
		pass2:    newGrid(size),
		registry: Builtin(),
		workers:  1,
	}
	for _, o := range opts {
		o(e)
	}
	if e.rules, err = e.registry.Lookup(ruleSet); err != nil {
		return nil, err
	}
	e.bands = splitRows(size, e.workers)
	return e, nil
}

//splitRows divides n rows into at most workers bands of at least DefMinRowsPerWorker rows
func splitRows(n, workers int) []band {
	if workers <= 1 {
		return []band{{0, n}}
	}
	rowsPerWorker := n / workers
	if rowsPerWorker < DefMinRowsPerWorker {
		rowsPerWorker = DefMinRowsPerWorker
	} else if rowsPerWorker*workers < n {
		rowsPerWorker++
	}
	bands := make([]band, 0, workers)
	for from := 0; from < n; from += rowsPerWorker {
		to := from + rowsPerWorker
		if to > n {
			to = n
		}
		bands = append(bands, band{from, to})
	}
	return bands
}

//Size returns the grid side length
func (e *Engine) Size() int { return e.grid.Size() }

//Workers returns the number of row bands a pass is split into
func (e *Engine) Workers() int { return len(e.bands) }

//Registry returns the registry rule sets are selected from
func (e *Engine) Registry() *Registry { return e.registry }

//RuleSet returns the active rule set
func (e *Engine) RuleSet() RuleSet { return e.rules }

//Generation returns the number of successful steps
func (e *Engine) Generation() int { return e.generation }

//Changed returns how many cells the last successful step altered
func (e *Engine) Changed() int { return e.changed }

//Get reads one cell
func (e *Engine) Get(row, col int) (State, error) { return e.grid.Get(row, col) }

//Snapshot returns a copy of the current rows for rendering
func (e *Engine) Snapshot() [][]State { return e.grid.Snapshot() }

//Grid returns a copy of the current grid
func (e *Engine) Grid() *Grid { return e.grid.Clone() }

//Counts returns the number of cells in each state
func (e *Engine) Counts() [NumStates]int { return e.grid.Counts() }

//SetCell writes a single cell
func (e *Engine) SetCell(row, col int, s State) error { return e.grid.Set(row, col, s) }

//FillAll sets every cell to s
func (e *Engine) FillAll(s State) error { return e.grid.Fill(s) }

//SelectRule switches the active rule set; the grid is not touched
func (e *Engine) SelectRule(name string) error {
	rs, err := e.registry.Lookup(name)
	if err != nil {
		return err
	}
	e.rules = rs
	return nil
}

//Step advances the grid by one generation
func (e *Engine) Step() error {
	if err := e.pass(e.rules.Horizontal, e.grid, e.pass1, horizontal); err != nil {
		return fmt.Errorf("rule set %q: %w", e.rules.Name, err)
	}
	if err := e.pass(e.rules.Vertical, e.pass1, e.pass2, vertical); err != nil {
		return fmt.Errorf("rule set %q: %w", e.rules.Name, err)
	}
	e.changed = e.pass2.diff(e.grid)
	e.grid, e.pass2 = e.pass2, e.grid
	e.generation++
	return nil
}

//pass fills dst from src; dst is only read by the caller after every band finished
func (e *Engine) pass(rule Rule, src, dst *Grid, d direction) error {
	if len(e.bands) == 1 {
		return calcBand(rule, src, dst, d, e.bands[0])
	}
	var g errgroup.Group
	for _, b := range e.bands {
		b := b
		g.Go(func() error {
			return calcBand(rule, src, dst, d, b)
		})
	}
	return g.Wait()
}

//calcBand computes rows [b.from, b.to) of dst from the neighbors in src
func calcBand(rule Rule, src, dst *Grid, d direction, b band) error {
	for i := b.from; i < b.to; i++ {
		row := src.rows[i]
		up := src.rows[src.Wrap(i-1)]
		down := src.rows[src.Wrap(i+1)]
		out := dst.rows[i]
		for j := range row {
			var before, after State
			if d == horizontal {
				before, after = row[src.Wrap(j-1)], row[src.Wrap(j+1)]
			} else {
				before, after = up[j], down[j]
			}
			s, err := rule.Lookup(before, row[j], after)
			if err == nil {
				//every committed cell holds a valid state
				err = checkState(s)
			}
			if err != nil {
				return fmt.Errorf("%v pass at (%d,%d): %w", d, i, j, err)
			}
			out[j] = s
		}
	}
	return nil
}
