package universe

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triautomata/src/automaton"
)

var (
	testTemplate = Template{"ts1", "", [][]int{{1, 1, 1}, {2, 1, 1}, {3, 1, 2}, {1, 2, 2}, {2, 3, 1}}}

	engines = map[string]int{
		"sequential": 1,
		"parallel":   4,
	}
)

const (
	size = 200
)

func newUniverseOptions() *Options {
	o := DefaultUniverseOptions
	o.Interval = 0
	o.Size = 6
	return &o
}

func newTestUniverse(t *testing.T, o *Options, stateCh chan Status) *BaseUniverse {
	t.Helper()
	u, err := NewBaseUniverse(o, stateCh)
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u
}

func waitFinished(t *testing.T, stateCh chan Status) Status {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st := <-stateCh:
			if st.RunningMode == RunningStateFinished {
				return st
			}
		case <-timeout:
			t.Fatal("universe did not finish")
		}
	}
}

type countingViewer struct {
	refreshed atomic.Int32
	u         Universe
}

func (v *countingViewer) Refresh()            { v.refreshed.Add(1) }
func (v *countingViewer) Register(u Universe) { v.u = u }
func (v *countingViewer) Start()              {}

//editingViewer paints a cell while registering and records refreshes that arrive too early
type editingViewer struct {
	registered atomic.Bool
	early      atomic.Int32
	refreshed  atomic.Int32
	err        error
}

func (v *editingViewer) Refresh() {
	if !v.registered.Load() {
		v.early.Add(1)
	}
	v.refreshed.Add(1)
}

func (v *editingViewer) Register(u Universe) {
	v.err = u.SetCell(0, 0, automaton.StateYellow)
	v.registered.Store(true)
}

func (v *editingViewer) Start() {}

type stepRecord struct {
	ruleSet string
	counts  [automaton.NumStates]int
	err     error
}

type recordingObserver struct {
	sync.Mutex
	steps []stepRecord
}

func (o *recordingObserver) ObserveStep(ruleSet string, _ time.Duration, counts [automaton.NumStates]int, err error) {
	o.Lock()
	defer o.Unlock()
	o.steps = append(o.steps, stepRecord{ruleSet, counts, err})
}

func TestNewBaseUniverseRejectsBadOptions(t *testing.T) {
	o := newUniverseOptions()
	o.Size = 0
	_, err := NewBaseUniverse(o, nil)
	assert.ErrorIs(t, err, automaton.ErrInvalidArgument)

	o = newUniverseOptions()
	o.RuleSet = "nonexistent"
	_, err = NewBaseUniverse(o, nil)
	assert.ErrorIs(t, err, automaton.ErrUnknownRuleSet)
}

func TestNewBaseUniverseDefaults(t *testing.T) {
	u := newTestUniverse(t, nil, nil)
	st := u.Status()
	assert.Equal(t, RunningStateManual, st.RunningMode)
	assert.Equal(t, automaton.Forest, st.RuleSet)
	assert.Equal(t, [automaton.NumStates]int{DefSize * DefSize, 0, 0}, st.Counts)
	assert.Len(t, u.Grid(), DefSize)
	assert.Equal(t, automaton.Builtin().Names(), u.RuleSets())
}

func TestSetCellAndErrors(t *testing.T) {
	u := newTestUniverse(t, newUniverseOptions(), nil)
	require.NoError(t, u.SetCell(2, 3, automaton.StateBlack))
	assert.Equal(t, automaton.StateBlack, u.Grid()[2][3])

	before := u.Grid()
	assert.ErrorIs(t, u.SetCell(6, 0, automaton.StateYellow), automaton.ErrOutOfBounds)
	assert.ErrorIs(t, u.SetCell(0, 0, 3), automaton.ErrInvalidArgument)
	assert.ErrorIs(t, u.Fill(3), automaton.ErrInvalidArgument)
	assert.Equal(t, before, u.Grid())

	require.NoError(t, u.Fill(automaton.StateYellow))
	assert.Equal(t, [automaton.NumStates]int{0, 36, 0}, u.Status().Counts)
}

func TestSelectRule(t *testing.T) {
	u := newTestUniverse(t, newUniverseOptions(), nil)
	require.NoError(t, u.SelectRule(automaton.Scroll))
	assert.Equal(t, automaton.Scroll, u.Status().RuleSet)

	assert.ErrorIs(t, u.SelectRule("nonexistent"), automaton.ErrUnknownRuleSet)
	assert.Equal(t, automaton.Scroll, u.Status().RuleSet)

	require.NoError(t, u.NextRule())
	assert.Equal(t, automaton.Stair, u.Status().RuleSet)
	require.NoError(t, u.NextRule())
	require.NoError(t, u.NextRule())
	assert.Equal(t, automaton.Forest, u.Status().RuleSet)
}

func TestStepPublishesGeneration(t *testing.T) {
	o := newUniverseOptions()
	o.RuleSet = automaton.Scroll
	u := newTestUniverse(t, o, nil)
	require.NoError(t, u.SetCell(0, 0, automaton.StateYellow))
	require.NoError(t, u.Step())

	st := u.Status()
	assert.Equal(t, 1, st.IterationNum)
	assert.Equal(t, 2, st.Changed)
	assert.Equal(t, RunningStateManual, st.RunningMode)
	assert.Equal(t, automaton.StateYellow, u.Grid()[1][1])
	assert.Equal(t, automaton.StateGreen, u.Grid()[0][0])
}

func TestStepFailureLeavesGrid(t *testing.T) {
	missing := automaton.Func(func(_, c, _ automaton.State) automaton.State { return c + 3 })
	reg, err := automaton.Builtin().With(automaton.RuleSet{Name: "broken", Horizontal: missing, Vertical: missing})
	require.NoError(t, err)

	o := newUniverseOptions()
	o.Registry = reg
	o.RuleSet = "broken"
	obs := &recordingObserver{}
	o.Observer = obs
	u := newTestUniverse(t, o, nil)
	require.NoError(t, u.SetCell(1, 1, automaton.StateBlack))
	before := u.Grid()

	err = u.Step()
	assert.ErrorIs(t, err, automaton.ErrInvalidArgument)
	assert.Equal(t, before, u.Grid())
	st := u.Status()
	assert.Equal(t, 0, st.IterationNum)
	assert.Equal(t, RunningStateFinished, st.RunningMode)
	assert.NotEmpty(t, st.LastError)

	require.Len(t, obs.steps, 1)
	assert.Equal(t, "broken", obs.steps[0].ruleSet)
	assert.Error(t, obs.steps[0].err)
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	o := newUniverseOptions()
	o.RuleSet = automaton.Scroll
	o.MaxSteps = 5
	obs := &recordingObserver{}
	o.Observer = obs
	stateCh := make(chan Status, 10)
	u := newTestUniverse(t, o, stateCh)
	require.NoError(t, u.SetCell(0, 0, automaton.StateYellow))

	u.Run()
	st := waitFinished(t, stateCh)
	assert.Equal(t, 5, st.IterationNum)
	assert.Eventually(t, func() bool { return !u.Running() }, time.Second, time.Millisecond)

	obs.Lock()
	assert.Len(t, obs.steps, 5)
	obs.Unlock()
	assert.Equal(t, automaton.StateYellow, u.Grid()[5][5])
}

func TestRunStopsOnStableBoard(t *testing.T) {
	o := newUniverseOptions()
	o.RuleSet = automaton.Mod
	stateCh := make(chan Status, 10)
	u := newTestUniverse(t, o, stateCh)

	u.Run()
	st := waitFinished(t, stateCh)
	assert.Equal(t, 1, st.IterationNum)
	assert.Equal(t, 0, st.Changed)
}

func TestRunAndStop(t *testing.T) {
	o := newUniverseOptions()
	o.RuleSet = automaton.Scroll
	o.MaxSteps = 0
	o.Interval = time.Millisecond
	u := newTestUniverse(t, o, nil)
	require.NoError(t, u.SetCell(0, 0, automaton.StateYellow))

	u.Run()
	u.Run()
	assert.True(t, u.Running())
	require.Eventually(t, func() bool { return u.Status().IterationNum > 2 }, 5*time.Second, time.Millisecond)

	u.Stop()
	assert.False(t, u.Running())
	assert.Equal(t, RunningStateManual, u.Status().RunningMode)

	iter := u.Status().IterationNum
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, iter, u.Status().IterationNum)
}

func TestClearResetsCounters(t *testing.T) {
	o := newUniverseOptions()
	o.RuleSet = automaton.Scroll
	u := newTestUniverse(t, o, nil)
	require.NoError(t, u.SetCell(0, 0, automaton.StateBlack))
	require.NoError(t, u.Step())
	require.NoError(t, u.Clear())

	st := u.Status()
	assert.Equal(t, 0, st.IterationNum)
	assert.Equal(t, RunningStateManual, st.RunningMode)
	assert.Equal(t, [automaton.NumStates]int{36, 0, 0}, st.Counts)
}

func TestTemplates(t *testing.T) {
	u := newTestUniverse(t, newUniverseOptions(), nil)
	require.NoError(t, u.AddTemplate(testTemplate))
	require.NoError(t, u.AddTemplate(Template{Name: "edge", Cells: [][]int{{5, 5, 2}, {9, 0, 1}}}))
	assert.Equal(t, []string{"edge", "ts1"}, u.Templates())

	assert.ErrorIs(t, u.AddTemplate(Template{Name: "bad", Cells: [][]int{{0, 0, 3}}}), automaton.ErrInvalidArgument)
	assert.ErrorIs(t, u.AddTemplate(Template{Name: "short", Cells: [][]int{{0, 0}}}), automaton.ErrInvalidArgument)
	assert.ErrorIs(t, u.SettleTemplate("nonexistent"), ErrUnknownTemplate)

	require.NoError(t, u.SettleTemplate("ts1"))
	g := u.Grid()
	assert.Equal(t, automaton.StateYellow, g[1][1])
	assert.Equal(t, automaton.StateBlack, g[1][3])
	assert.Equal(t, automaton.StateBlack, g[2][1])
	assert.Equal(t, automaton.StateYellow, g[3][2])

	require.NoError(t, u.SettleTemplate("edge"))
	assert.Equal(t, automaton.StateBlack, u.Grid()[5][5])
}

func TestSettleWithRandomDataIsSeeded(t *testing.T) {
	a := newTestUniverse(t, newUniverseOptions(), nil)
	b := newTestUniverse(t, newUniverseOptions(), nil)
	require.NoError(t, a.SettleWithRandomData())
	require.NoError(t, b.SettleWithRandomData())
	assert.Equal(t, a.Grid(), b.Grid())

	counts := a.Status().Counts
	assert.Equal(t, 36, counts[0]+counts[1]+counts[2])
	assert.NotEqual(t, 36, counts[0])
}

func TestViewerRefreshedAfterMutation(t *testing.T) {
	u := newTestUniverse(t, newUniverseOptions(), nil)
	v := &countingViewer{}
	u.RegisterViewer(v)
	assert.Same(t, u, v.u)

	require.NoError(t, u.SetCell(0, 0, automaton.StateYellow))
	require.NoError(t, u.Step())
	require.NoError(t, u.SelectRule(automaton.Mod))
	assert.GreaterOrEqual(t, v.refreshed.Load(), int32(3))
}

func TestViewerRegisteredBeforeRefresh(t *testing.T) {
	u := newTestUniverse(t, newUniverseOptions(), nil)
	v := &editingViewer{}
	u.RegisterViewer(v)
	require.NoError(t, v.err)
	assert.Equal(t, int32(0), v.early.Load())

	require.NoError(t, u.Step())
	assert.Equal(t, int32(1), v.refreshed.Load())
	assert.Equal(t, int32(0), v.early.Load())
}

func TestClosedUniverse(t *testing.T) {
	u, err := NewBaseUniverse(newUniverseOptions(), nil)
	require.NoError(t, err)
	u.Close()
	u.Close()

	assert.ErrorIs(t, u.Step(), ErrClosed)
	assert.ErrorIs(t, u.SetCell(0, 0, automaton.StateBlack), ErrClosed)
	assert.ErrorIs(t, u.SelectRule(automaton.Mod), ErrClosed)
	u.Run()
	assert.Eventually(t, func() bool { return !u.Running() }, time.Second, time.Millisecond)
	u.Stop()
}

func universeStep(u Universe, b *testing.B) {
	_ = u.AddTemplate(testTemplate)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		_ = u.Clear()
		_ = u.SettleTemplate("ts1")
		b.StartTimer()
		if err := u.Step(); err != nil {
			b.Fatal(err)
		}
	}
	u.Close()
}

func universeRun(u Universe, b *testing.B) {
	stateCh := u.StateCh()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		_ = u.Clear()
		<-stateCh //wait for clear
		_ = u.SettleWithRandomData()
		<-stateCh
		b.StartTimer()
		u.Run()
		for {
			st := <-stateCh
			if st.RunningMode == RunningStateFinished {
				break
			}
		}
		for u.Running() {
			runtime.Gosched()
		}
	}
	u.Close()
}

func newBenchUniverse(b *testing.B, workers int, stateCh chan Status) Universe {
	o := DefaultUniverseOptions
	o.Interval = 0
	o.Size = size
	o.MaxSteps = 50
	o.Workers = workers
	u, err := NewBaseUniverse(&o, stateCh)
	if err != nil {
		b.Fatal(err)
	}
	return u
}

func engineNames() (engineNames []string) {
	engineNames = make([]string, 0, len(engines))
	for k := range engines {
		engineNames = append(engineNames, k)
	}
	sort.Strings(engineNames)
	return
}

func Benchmark_Step(b *testing.B) {
	for _, e := range engineNames() {
		b.Run(e, func(b *testing.B) {
			universeStep(newBenchUniverse(b, engines[e], nil), b)
		})
	}
}

func Benchmark_Universe(b *testing.B) {
	for _, e := range engineNames() {
		b.Run(e, func(b *testing.B) {
			universeRun(newBenchUniverse(b, engines[e], make(chan Status, 10)), b)
		})
	}
}
