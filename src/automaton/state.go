package automaton

import (
	"fmt"
	"strconv"
)

//State is the value of a single cell, one of StateGreen, StateYellow or StateBlack
type State uint8

const (
	StateGreen State = iota
	StateYellow
	StateBlack

	//NumStates is the number of distinct cell states
	NumStates = 3
)

//Valid reports whether s is one of the three cell states
func (s State) Valid() bool {
	return s < NumStates
}

func (s State) String() string {
	return strconv.Itoa(int(s))
}

//ParseState parses a decimal state value ("0", "1" or "2")
func ParseState(v string) (State, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n >= NumStates {
		return 0, fmt.Errorf("%w: state %q", ErrInvalidArgument, v)
	}
	return State(n), nil
}

func checkState(s State) error {
	if !s.Valid() {
		return fmt.Errorf("%w: state %d not in [0,%d)", ErrInvalidArgument, s, NumStates)
	}
	return nil
}
