package automaton

import "fmt"

//RuleSet pairs the rule of the horizontal pass with the rule of the vertical pass
type RuleSet struct {
	Name        string
	Description string
	Horizontal  Rule
	Vertical    Rule
}

func (rs RuleSet) validate() error {
	if rs.Name == "" {
		return fmt.Errorf("%w: rule set without a name", ErrInvalidArgument)
	}
	if rs.Horizontal == nil || rs.Vertical == nil {
		return fmt.Errorf("%w: rule set %q: missing pass rule", ErrInvalidArgument, rs.Name)
	}
	return nil
}

//Registry is an ordered, read-only collection of named rule sets
type Registry struct {
	order []string
	sets  map[string]RuleSet
}

//NewRegistry builds a registry; later sets with an existing name replace the earlier one in place
func NewRegistry(sets ...RuleSet) (*Registry, error) {
	r := &Registry{sets: make(map[string]RuleSet, len(sets))}
	for _, rs := range sets {
		if err := rs.validate(); err != nil {
			return nil, err
		}
		if _, ok := r.sets[rs.Name]; !ok {
			r.order = append(r.order, rs.Name)
		}
		r.sets[rs.Name] = rs
	}
	return r, nil
}

//With returns a new registry holding r's sets followed by sets; r is not modified
func (r *Registry) With(sets ...RuleSet) (*Registry, error) {
	all := make([]RuleSet, 0, len(r.order)+len(sets))
	for _, name := range r.order {
		all = append(all, r.sets[name])
	}
	return NewRegistry(append(all, sets...)...)
}

//Lookup returns the rule set registered under name
func (r *Registry) Lookup(name string) (RuleSet, error) {
	rs, ok := r.sets[name]
	if !ok {
		return RuleSet{}, fmt.Errorf("%w: %q", ErrUnknownRuleSet, name)
	}
	return rs, nil
}

//Names lists registered names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

//Next returns the name registered after name, wrapping around; unknown names yield the first one
func (r *Registry) Next(name string) string {
	if len(r.order) == 0 {
		return ""
	}
	for i, n := range r.order {
		if n == name {
			return r.order[(i+1)%len(r.order)]
		}
	}
	return r.order[0]
}

const (
	Forest = "Forest"
	Scroll = "Scroll"
	Stair  = "Stair"
	Mod    = "Mod"
)

var builtin = mustRegistry(
	RuleSet{
		Name:        Forest,
		Description: "fire (1) burns through trees (0) leaving ash (2) that regrows",
		Horizontal:  mustTable("forest-h", forestHorizontal),
		Vertical:    mustTable("forest-v", forestVertical),
	},
	scrollSet(),
	RuleSet{
		Name:        Stair,
		Description: "rows scroll right, colored cells drip down over green",
		Horizontal:  mustTable("stair-h", shiftFromLeft),
		Vertical:    mustTable("stair-v", dripDown),
	},
	RuleSet{
		Name:        Mod,
		Description: "each pass sets a cell to (left + center + right) mod 3",
		Horizontal:  Func(ModSum),
		Vertical:    Func(ModSum),
	},
)

func scrollSet() RuleSet {
	t := mustTable("scroll", shiftFromLeft)
	return RuleSet{
		Name:        Scroll,
		Description: "the board scrolls one cell diagonally per step",
		Horizontal:  t,
		Vertical:    t,
	}
}

//Builtin returns the process-wide registry of built-in rule sets
func Builtin() *Registry { return builtin }

func mustRegistry(sets ...RuleSet) *Registry {
	r, err := NewRegistry(sets...)
	if err != nil {
		panic(err)
	}
	return r
}

//fire spreads sideways in the horizontal pass and burns out in the vertical pass
func forestHorizontal(l, c, r State) State {
	if c == StateGreen && (l == StateYellow || r == StateYellow) {
		return StateYellow
	}
	return c
}

func forestVertical(u, c, d State) State {
	switch c {
	case StateGreen:
		if u == StateYellow || d == StateYellow {
			return StateYellow
		}
		return StateGreen
	case StateYellow:
		return StateBlack
	default:
		//ash regrows only between two trees
		if u == StateGreen && d == StateGreen {
			return StateGreen
		}
		return StateBlack
	}
}

func shiftFromLeft(l, _, _ State) State { return l }

func dripDown(u, c, _ State) State {
	if c == StateGreen {
		return u
	}
	return c
}
