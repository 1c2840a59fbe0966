package automaton

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfBounds     = errors.New("out of bounds")
	ErrIncompleteTable = errors.New("incomplete rule table")
	ErrUnknownRuleSet  = errors.New("unknown rule set")
)
