package universe

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"triautomata/src/automaton"
)

var (
	ErrClosed          = errors.New("universe closed")
	ErrUnknownTemplate = errors.New("unknown template")
)

//Options represents the Universe's configurable options
type Options struct {
	Size     int
	Interval time.Duration
	MaxSteps int //0 means unlimited
	RuleSet  string
	Workers  int
	Seed     int64
	Registry *automaton.Registry //nil means automaton.Builtin()
	Logger   *slog.Logger
	Observer Observer
}

//Status represents the status of the Universe at concrete moment
type Status struct {
	IterationNum  int
	RunningMode   RunningState
	RuleSet       string
	Counts        [automaton.NumStates]int
	Changed       int //cells changed by the last step
	IterationTime time.Duration
	LastError     string
}

//Viewer is the interface to any Viewer - the object who can display simulation data or control the engine
type Viewer interface {
	Refresh()
	Register(u Universe)
	Start()
}

//Observer receives the outcome of every step
type Observer interface {
	ObserveStep(ruleSet string, d time.Duration, counts [automaton.NumStates]int, err error)
}

//Template represent the seeding template which can used to settle the universe with predefined data
type Template struct {
	Name  string  //template name
	Descr string  //template descr
	Cells [][]int //array of [x, y, state]
}

//The universe running status at the concrete moment
type RunningState int

//default options
const (
	DefSimulationInterval = time.Millisecond * 150
	DefMaxSteps           = 1000
	DefSize               = 40
	DefWorkers            = 1
	DefSeed               = 1
)

const (
	RunningStateManual   RunningState = 0x0
	RunningStateStep     RunningState = 0x1
	RunningStateRun      RunningState = 0x2
	RunningStateFinished RunningState = 0x3
)

func (r RunningState) String() string {
	switch r {
	case RunningStateManual:
		return "manual"
	case RunningStateStep:
		return "step"
	case RunningStateRun:
		return "running"
	case RunningStateFinished:
		return "finished"
	}
	return fmt.Sprintf("RunningState(%d)", int(r))
}

var DefaultUniverseOptions = Options{
	Size:     DefSize,
	Interval: DefSimulationInterval,
	MaxSteps: DefMaxSteps,
	RuleSet:  automaton.Forest,
	Workers:  DefWorkers,
	Seed:     DefSeed,
}

//BaseUniverse implements Universe on top of automaton.Engine.
//The engine, the templates and the random source belong to the mainLoop
//goroutine; other goroutines only read the published state.
type BaseUniverse struct {
	options Options
	log     *slog.Logger
	engine  *automaton.Engine
	rng     *rand.Rand
	state   struct {
		Status
		grid  [][]automaton.State
		views []Viewer
		sync.Mutex
	}
	run struct {
		stop chan struct{}
		sync.Mutex
	}
	stateCh   chan Status
	templates map[string]Template
	controlCh chan func()
	closeCh   chan struct{}
	closeOnce sync.Once
}

//NewBaseUniverse creates the BaseUniverse instance and starts its control loop
func NewBaseUniverse(o *Options, stateCh chan Status) (*BaseUniverse, error) {
	if o == nil {
		o = &DefaultUniverseOptions
	}
	opts := *o
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	engine, err := automaton.NewEngine(opts.Size, opts.RuleSet,
		automaton.WithWorkers(opts.Workers),
		automaton.WithRegistry(opts.Registry))
	if err != nil {
		return nil, err
	}
	opts.Registry = engine.Registry()

	u := &BaseUniverse{
		options:   opts,
		log:       opts.Logger,
		engine:    engine,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		stateCh:   stateCh,
		templates: map[string]Template{},
		controlCh: make(chan func()),
		closeCh:   make(chan struct{}),
	}
	u.publish()
	u.log.Info("universe created",
		slog.Int("size", engine.Size()),
		slog.String("ruleset", engine.RuleSet().Name),
		slog.Int("workers", engine.Workers()))
	go u.mainLoop()
	return u, nil
}

//exec runs cmd on the control goroutine and waits for its result
func (u *BaseUniverse) exec(cmd func() error) error {
	done := make(chan error, 1)
	select {
	case u.controlCh <- func() { done <- cmd() }:
	case <-u.closeCh:
		return ErrClosed
	}
	return <-done
}

//mainLoop - the main cycle, should start as a goroutine
//waits for command and executes
func (u *BaseUniverse) mainLoop() {
	for {
		select {
		case cmd := <-u.controlCh:
			cmd()
		case <-u.closeCh:
			return
		}
	}
}

//AddTemplate adds the seeding template to the internal storage
//the universe can be populated with this template by call SettleTemplate
func (u *BaseUniverse) AddTemplate(tmpl Template) error {
	return u.exec(func() error {
		for _, c := range tmpl.Cells {
			if len(c) != 3 {
				return fmt.Errorf("%w: template %q: cell %v is not [x, y, state]", automaton.ErrInvalidArgument, tmpl.Name, c)
			}
			if c[2] < 0 || c[2] >= automaton.NumStates {
				return fmt.Errorf("%w: template %q: state %d", automaton.ErrInvalidArgument, tmpl.Name, c[2])
			}
		}
		u.templates[tmpl.Name] = tmpl
		return nil
	})
}

//Templates lists the registered template names
func (u *BaseUniverse) Templates() (names []string) {
	_ = u.exec(func() error {
		for name := range u.templates {
			names = append(names, name)
		}
		return nil
	})
	sort.Strings(names)
	return
}

//SettleTemplate populates the universe with the seeding template
//cells outside the area are skipped
func (u *BaseUniverse) SettleTemplate(name string) error {
	return u.exec(func() error {
		tmpl, ok := u.templates[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		n := u.engine.Size()
		for _, c := range tmpl.Cells {
			x, y := c[0], c[1]
			if x < 0 || y < 0 || x >= n || y >= n {
				continue
			}
			if err := u.engine.SetCell(y, x, automaton.State(c[2])); err != nil {
				return err
			}
		}
		u.publish()
		u.refreshView()
		return nil
	})
}

//SettleWithRandomData resets the counters and assigns every cell a random state
func (u *BaseUniverse) SettleWithRandomData() error {
	return u.exec(func() error {
		n := u.engine.Size()
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				if err := u.engine.SetCell(y, x, automaton.State(u.rng.Intn(automaton.NumStates))); err != nil {
					return err
				}
			}
		}
		u.resetCounters()
		u.publish()
		u.switchRunningState(RunningStateManual)
		u.refreshView()
		return nil
	})
}

//SetCell paints one cell
func (u *BaseUniverse) SetCell(row, col int, s automaton.State) error {
	return u.exec(func() error {
		if err := u.engine.SetCell(row, col, s); err != nil {
			return err
		}
		u.publish()
		u.refreshView()
		return nil
	})
}

//Fill paints every cell with s
func (u *BaseUniverse) Fill(s automaton.State) error {
	return u.exec(func() error {
		if err := u.engine.FillAll(s); err != nil {
			return err
		}
		u.publish()
		u.refreshView()
		return nil
	})
}

//SelectRule switches the active rule set, the grid is kept
func (u *BaseUniverse) SelectRule(name string) error {
	return u.exec(func() error {
		return u.selectRule(name)
	})
}

//NextRule switches to the rule set registered after the active one
func (u *BaseUniverse) NextRule() error {
	return u.exec(func() error {
		return u.selectRule(u.options.Registry.Next(u.engine.RuleSet().Name))
	})
}

func (u *BaseUniverse) selectRule(name string) error {
	prev := u.engine.RuleSet().Name
	if err := u.engine.SelectRule(name); err != nil {
		u.log.Warn("rule set not selected", slog.String("ruleset", name), slog.Any("error", err))
		return err
	}
	u.log.Info("rule set selected", slog.String("from", prev), slog.String("to", name))
	u.publish()
	u.refreshView()
	return nil
}

//RegisterViewer registers the viewer - the universe will call the viewer when the state is changed
//Refresh is never called before Register returns
func (u *BaseUniverse) RegisterViewer(v Viewer) {
	v.Register(u)
	u.state.Lock()
	u.state.views = append(u.state.views, v)
	u.state.Unlock()
}

//StateCh returns the channel with the universe's status updates
func (u *BaseUniverse) StateCh() chan Status {
	return u.stateCh
}

//Status returns current universe status represented by Status struct
func (u *BaseUniverse) Status() Status {
	u.state.Lock()
	defer u.state.Unlock()
	return u.state.Status
}

//Options returns current universe configuration represented by Options struct
func (u *BaseUniverse) Options() Options {
	return u.options
}

//Grid returns the last committed generation; callers must not modify it
func (u *BaseUniverse) Grid() [][]automaton.State {
	u.state.Lock()
	defer u.state.Unlock()
	return u.state.grid
}

//RuleSets lists the selectable rule set names
func (u *BaseUniverse) RuleSets() []string {
	return u.options.Registry.Names()
}

//Running reports whether auto-play is active
func (u *BaseUniverse) Running() bool {
	u.run.Lock()
	defer u.run.Unlock()
	return u.run.stop != nil
}

//Run starts the universe simulation, returns immediately
//a step is done every Interval until Stop, MaxSteps, a stable board or a failed step
func (u *BaseUniverse) Run() {
	u.run.Lock()
	defer u.run.Unlock()
	if u.run.stop != nil {
		return
	}
	stop := make(chan struct{})
	u.run.stop = stop
	go u.autoPlay(stop)
}

//Stop stops the universe simulation, returns when the running mode is switched back to manual
func (u *BaseUniverse) Stop() {
	u.run.Lock()
	if u.run.stop != nil {
		close(u.run.stop)
		u.run.stop = nil
	}
	u.run.Unlock()
	_ = u.exec(func() error {
		if u.Status().RunningMode == RunningStateRun {
			u.log.Info("run stopped", slog.Int("iteration", u.Status().IterationNum))
			u.switchRunningState(RunningStateManual)
		}
		return nil
	})
}

//Step does one simulation step and waits for it
func (u *BaseUniverse) Step() error {
	return u.exec(func() error {
		_, err := u.step(RunningStateManual)
		return err
	})
}

//Clear clears the universe (all cells to state 0, counters reset)
func (u *BaseUniverse) Clear() error {
	return u.exec(func() error {
		if err := u.engine.FillAll(automaton.StateGreen); err != nil {
			return err
		}
		u.resetCounters()
		u.publish()
		u.switchRunningState(RunningStateManual)
		u.refreshView()
		return nil
	})
}

//Close stops auto-play and the main loop
func (u *BaseUniverse) Close() {
	u.run.Lock()
	if u.run.stop != nil {
		close(u.run.stop)
		u.run.stop = nil
	}
	u.run.Unlock()
	u.closeOnce.Do(func() {
		close(u.closeCh)
	})
}

//autoPlay is the auto-play timer, started as a goroutine by Run
func (u *BaseUniverse) autoPlay(stop chan struct{}) {
	defer func() {
		u.run.Lock()
		if u.run.stop == stop {
			u.run.stop = nil
		}
		u.run.Unlock()
	}()
	err := u.exec(func() error {
		u.log.Info("run started", slog.Duration("interval", u.options.Interval))
		u.switchRunningState(RunningStateRun)
		return nil
	})
	if err != nil {
		return
	}

	var tick <-chan time.Time
	if u.options.Interval > 0 {
		t := time.NewTicker(u.options.Interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-u.closeCh:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			case <-u.closeCh:
				return
			default:
			}
		}
		finished := false
		err := u.exec(func() error {
			select {
			case <-stop:
				//Stop won the race with this tick
				finished = true
				return nil
			default:
			}
			var err error
			finished, err = u.step(RunningStateRun)
			return err
		})
		if err != nil || finished {
			return
		}
	}
}

//step does the new one state calculation for entire universe
//mode is the running state restored after an unfinished step
func (u *BaseUniverse) step(mode RunningState) (finished bool, err error) {
	maxIter := u.options.MaxSteps
	if maxIter > 0 && u.Status().IterationNum >= maxIter {
		u.switchRunningState(RunningStateFinished)
		return true, nil
	}
	u.switchRunningState(RunningStateStep)

	start := time.Now()
	err = u.engine.Step()
	elapsed := time.Since(start)
	name := u.engine.RuleSet().Name
	if u.options.Observer != nil {
		u.options.Observer.ObserveStep(name, elapsed, u.engine.Counts(), err)
	}

	u.state.Lock()
	u.state.IterationTime = elapsed
	if err != nil {
		u.state.LastError = err.Error()
	} else {
		u.state.IterationNum++
		u.state.Changed = u.engine.Changed()
		u.state.LastError = ""
	}
	iter, changed := u.state.IterationNum, u.state.Changed
	u.state.Unlock()

	switch {
	case err != nil:
		u.log.Error("step failed", slog.String("ruleset", name), slog.Int("iteration", iter), slog.Any("error", err))
		finished = true
	case changed == 0:
		u.log.Info("board is stable", slog.String("ruleset", name), slog.Int("iteration", iter))
		finished = true
	case maxIter > 0 && iter >= maxIter:
		finished = true
	}

	u.publish()
	if finished {
		u.switchRunningState(RunningStateFinished)
	} else {
		u.switchRunningState(mode)
	}
	u.refreshView()
	return finished, err
}

func (u *BaseUniverse) resetCounters() {
	u.state.Lock()
	u.state.IterationNum = 0
	u.state.Changed = 0
	u.state.IterationTime = 0
	u.state.LastError = ""
	u.state.Unlock()
}

//publish copies the committed engine state for readers on other goroutines
func (u *BaseUniverse) publish() {
	grid := u.engine.Snapshot()
	counts := u.engine.Counts()
	name := u.engine.RuleSet().Name
	u.state.Lock()
	u.state.grid = grid
	u.state.Counts = counts
	u.state.RuleSet = name
	u.state.Unlock()
}

//switchRunningState switch the state of the universe to RunningState
//also writes the new state to the stateCh to signal upper control software
func (u *BaseUniverse) switchRunningState(to RunningState) {
	u.state.Lock()
	u.state.RunningMode = to
	st := u.state.Status
	u.state.Unlock()
	if u.stateCh != nil {
		select {
		case u.stateCh <- st:
		case <-u.closeCh:
		}
	}
}

//refreshView calls Refresh event for all registered views
func (u *BaseUniverse) refreshView() {
	u.state.Lock()
	views := append([]Viewer(nil), u.state.views...)
	u.state.Unlock()
	for _, v := range views {
		v.Refresh()
	}
}
