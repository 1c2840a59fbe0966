package automaton

import "fmt"

//Triple is an ordered neighborhood: left (or up), center, right (or down)
type Triple [3]State

func (t Triple) valid() bool {
	return t[0].Valid() && t[1].Valid() && t[2].Valid()
}

//index packs the triple as a base-3 number, left is the most significant digit
func (t Triple) index() int {
	return int(t[0])*NumStates*NumStates + int(t[1])*NumStates + int(t[2])
}

func (t Triple) String() string {
	return fmt.Sprintf("%d%d%d", t[0], t[1], t[2])
}

//NumTriples is the size of the neighborhood domain {0,1,2}^3
const NumTriples = NumStates * NumStates * NumStates

//Triples returns every neighborhood in base-3 order, from 000 to 222
func Triples() []Triple {
	ts := make([]Triple, 0, NumTriples)
	for l := State(0); l < NumStates; l++ {
		for c := State(0); c < NumStates; c++ {
			for r := State(0); r < NumStates; r++ {
				ts = append(ts, Triple{l, c, r})
			}
		}
	}
	return ts
}

//Rule maps a neighborhood to the next state of its center cell.
//Lookup must be pure; an implementation that has no entry for a
//neighborhood reports ErrIncompleteTable.
type Rule interface {
	Lookup(left, center, right State) (State, error)
}

//Table is an immutable rule with an explicit entry for each of the 27 triples
type Table struct {
	name    string
	entries [NumTriples]State
}

//NewTable builds a table from explicit entries; all 27 triples are required
func NewTable(name string, entries map[Triple]State) (*Table, error) {
	t := &Table{name: name}
	for tr, s := range entries {
		if !tr.valid() {
			return nil, fmt.Errorf("%w: table %q: triple %v", ErrInvalidArgument, name, tr)
		}
		if err := checkState(s); err != nil {
			return nil, fmt.Errorf("table %q: entry %v: %w", name, tr, err)
		}
		t.entries[tr.index()] = s
	}
	for _, tr := range Triples() {
		if _, ok := entries[tr]; !ok {
			return nil, fmt.Errorf("%w: table %q: no entry for %v", ErrIncompleteTable, name, tr)
		}
	}
	return t, nil
}

//TableFromFunc enumerates a generator over every triple into a Table
func TableFromFunc(name string, f func(left, center, right State) State) (*Table, error) {
	entries := make(map[Triple]State, NumTriples)
	for _, tr := range Triples() {
		entries[tr] = f(tr[0], tr[1], tr[2])
	}
	return NewTable(name, entries)
}

func mustTable(name string, f func(left, center, right State) State) *Table {
	t, err := TableFromFunc(name, f)
	if err != nil {
		panic(err)
	}
	return t
}

//Name returns the table name
func (t *Table) Name() string { return t.name }

//Lookup returns the entry for the triple
func (t *Table) Lookup(left, center, right State) (State, error) {
	tr := Triple{left, center, right}
	if !tr.valid() {
		return 0, fmt.Errorf("%w: table %q: triple %v", ErrInvalidArgument, t.name, tr)
	}
	return t.entries[tr.index()], nil
}

//Func is a closed-form rule evaluated on every lookup
type Func func(left, center, right State) State

//Lookup evaluates f; results outside the state range are rejected
func (f Func) Lookup(left, center, right State) (State, error) {
	s := f(left, center, right)
	if err := checkState(s); err != nil {
		return 0, fmt.Errorf("rule func at %v: %w", Triple{left, center, right}, err)
	}
	return s, nil
}

//ModSum is the derived rule (left + center + right) mod 3
func ModSum(left, center, right State) State {
	return (left + center + right) % NumStates
}
