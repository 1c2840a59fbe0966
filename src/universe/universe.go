package universe

import "triautomata/src/automaton"

//Universe is the session around an automaton engine: every call is
//serialized on one control goroutine, and viewers only ever see fully
//committed generations
type Universe interface {
	Status() Status
	Options() Options
	Grid() [][]automaton.State
	RuleSets() []string
	Templates() []string
	StateCh() chan Status
	AddTemplate(tmpl Template) error
	SettleTemplate(name string) error
	SettleWithRandomData() error
	SetCell(row, col int, s automaton.State) error
	Fill(s automaton.State) error
	SelectRule(name string) error
	NextRule() error
	RegisterViewer(v Viewer)
	Running() bool
	Run()
	Stop()
	Step() error
	Clear() error
	Close()
}
