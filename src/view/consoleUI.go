package view

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/logrusorgru/aurora"

	"triautomata/src/automaton"
	"triautomata/src/universe"
)

type keyBindings struct {
	key      interface{}
	name     string
	descr    string
	handler  func(v *gocui.View) error
	viewName string
}

//ConsoleUI is the interactive terminal sandbox: the field is painted with
//the mouse using the current brush, keys drive the universe
type ConsoleUI struct {
	u     universe.Universe
	g     *gocui.Gui
	k     []keyBindings
	brush automaton.State
	msg   string
}

var (
	runningStateDescr = map[universe.RunningState]string{
		universe.RunningStateManual:   aurora.Colorize("waiting", aurora.BlueFg).String(),
		universe.RunningStateStep:     "do the step",
		universe.RunningStateRun:      aurora.Colorize("running", aurora.CyanFg).String(),
		universe.RunningStateFinished: aurora.Colorize("finished", aurora.RedFg).String(),
	}
)

//NewViewTerminal creates the terminal UI; it takes over the terminal until Start returns
func NewViewTerminal() (*ConsoleUI, error) {
	var err error
	t := ConsoleUI{brush: automaton.StateYellow}

	t.g, err = gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	t.g.Mouse = true
	t.k = []keyBindings{
		{gocui.KeyCtrlC, "^C", "Exit", t.cmdQuit, ""},
		{'n', "N", "Next step", t.cmdNextRound, ""},
		{'r', "R", "Run", t.cmdRun, ""},
		{'s', "S", "Stop", t.cmdStop, ""},
		{'c', "C", "Clear", t.cmdClear, ""},
		{'w', "W", "Settle with random", t.cmdSettleWithRandom, ""},
		{gocui.KeyTab, "TAB", "Next rule", t.cmdNextRule, ""},
		{'0', "0", "Green brush", t.cmdBrush(automaton.StateGreen), ""},
		{'1', "1", "Yellow brush", t.cmdBrush(automaton.StateYellow), ""},
		{'2', "2", "Black brush", t.cmdBrush(automaton.StateBlack), ""},
		{'f', "F", "Fill with brush", t.cmdFill, ""},
		{gocui.MouseLeft, "MOUSE", "Paint the cell", t.cmdMouseClick, "battlefield"},
	}
	t.g.SetManagerFunc(t.layout)

	if err := t.initKeyBindings(t.k); err != nil {
		t.g.Close()
		return nil, err
	}

	return &t, nil
}

func (t *ConsoleUI) initKeyBindings(k []keyBindings) error {
	for _, kb := range k {
		h := kb.handler
		if err := t.g.SetKeybinding(kb.viewName, kb.key, gocui.ModNone, func(gui *gocui.Gui, view *gocui.View) error { return h(view) }); err != nil {
			return fmt.Errorf("key %s: %w", kb.name, err)
		}
	}
	return nil
}

func (t *ConsoleUI) Register(u universe.Universe) {
	t.u = u
}

//Start runs the terminal main loop until the user quits
func (t *ConsoleUI) Start() {
	defer t.g.Close()
	if err := t.g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		t.msg = err.Error()
	}
}

func (t *ConsoleUI) Refresh() {
	t.renderField()
	t.renderConfiguration()
	t.renderStatus()
}

func (t *ConsoleUI) renderField() {
	t.g.Update(func(g *gocui.Gui) error {
		v, e := g.View("battlefield")
		if e != nil {
			return nil
		}
		//the entire field is redrawn at once
		v.Clear()
		maxW, maxH := v.Size()
		out, _ := renderField(t.u.Grid(), maxW, maxH)
		_, _ = fmt.Fprint(v, out)
		return nil
	})
}

func (t *ConsoleUI) renderStatus() {
	t.g.Update(func(g *gocui.Gui) error {
		s := t.u.Status()
		if v, e := g.View("status"); e == nil {
			v.Clear()
			_, _ = fmt.Fprintln(v, t.renderProp("Step", "%v", s.IterationNum))
			_, _ = fmt.Fprintln(v, t.renderProp("Rule set", "%v", s.RuleSet))
			_, _ = fmt.Fprintln(v, t.renderProp("Changed", "%v cells", s.Changed))
			for i, c := range s.Counts {
				_, _ = fmt.Fprintln(v, t.renderProp(StateName(automaton.State(i)), "%v", c))
			}
			_, _ = fmt.Fprintln(v, t.renderProp("Evaluation time", "%v", s.IterationTime.Round(time.Microsecond)))
			_, _ = fmt.Fprintln(v, t.renderProp("Mode", "%v", runningStateDescr[s.RunningMode]))
			if s.LastError != "" {
				_, _ = fmt.Fprintln(v, " "+aurora.Red(s.LastError).String())
			} else if t.msg != "" {
				_, _ = fmt.Fprintln(v, " "+aurora.Red(t.msg).String())
			}
		}
		return nil
	})
}

func (t *ConsoleUI) renderConfiguration() {
	//it needs to call Update when calls from goroutine
	t.g.Update(func(g *gocui.Gui) error {
		c := t.u.Options()
		active := t.u.Status().RuleSet
		if v, e := g.View("configuration"); e == nil {
			v.Clear()
			_, _ = fmt.Fprintln(v, t.renderProp("Dimension", "%v x %v", c.Size, c.Size))
			_, _ = fmt.Fprintln(v, t.renderProp("Interval", "%v", c.Interval))
			_, _ = fmt.Fprintln(v, t.renderProp("Iterations", "%v steps", c.MaxSteps))
			_, _ = fmt.Fprintln(v, t.renderProp("Brush", "%v", colorize(t.brush)))
			_, _ = fmt.Fprintln(v, t.renderProp("Rule sets", ""))
			for _, name := range t.u.RuleSets() {
				marker := "  "
				if name == active {
					marker = aurora.Cyan("> ").String()
				}
				_, _ = fmt.Fprintln(v, "  "+marker+name)
			}
		}
		return nil
	})
}

func (t *ConsoleUI) renderProp(name string, valueformat string, values ...interface{}) string {
	return fmt.Sprintf(" "+aurora.Colorize(name, aurora.GreenFg).String()+": "+valueformat, values...)
}

func (t *ConsoleUI) layout(g *gocui.Gui) error {

	maxX, maxY := g.Size()
	leftColumnWidth := 28
	minWindowHeight := 20

	if maxY < minWindowHeight {
		if _, err := t.headerLayout(g, maxY, "Terminal height too small"); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
		}
		_ = g.DeleteView("configuration")
		_ = g.DeleteView("status")
		_ = g.DeleteView("battlefield")
		return nil

	}
	if _, err := t.headerLayout(g, 3, "3-State Automata"); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
	}

	if v, err := g.SetView("configuration", 0, 3, leftColumnWidth, 3+(maxY-5-3)/2); err != nil {
		if err != gocui.ErrUnknownView || v == nil {
			return err
		}
		v.Title = "Configuration"
		v.Frame = true
		t.renderConfiguration()
	}

	if v, err := g.SetView("status", 0, 3+(maxY-5-3)/2+1, leftColumnWidth, maxY-5); err != nil {
		if err != gocui.ErrUnknownView || v == nil {
			return err
		}
		v.Title = "Status"
		v.Frame = true
		t.renderStatus()
	}

	if v, err := g.SetView("battlefield", leftColumnWidth+1, 3, maxX-1, maxY-5); err != nil {
		if err != gocui.ErrUnknownView || v == nil {
			return err
		}
		v.Title = "Board"
		v.Frame = true
	}
	t.renderField()

	if v, err := g.SetView("help", -1, maxY-5, maxX, maxY-1); err != nil {
		if err != gocui.ErrUnknownView || v == nil {
			return err
		}
		v.Frame = false
		v.Wrap = true
		b := bytes.Buffer{}
		b.WriteString("KEYBINDINGS: ")
		for i, k := range t.k {
			if i != 0 {
				b.WriteString(", ")
			}
			b.WriteString(aurora.Green(k.name).String())
			b.WriteString(": ")
			b.WriteString(k.descr)
		}
		_, _ = fmt.Fprintln(v, b.String())
	}

	return nil
}

func (t *ConsoleUI) headerLayout(g *gocui.Gui, height int, text string) (v *gocui.View, err error) {
	maxX, _ := g.Size()
	if v, err = g.SetView("header", -1, -1, maxX+1, height); err != nil {
		if err == gocui.ErrUnknownView && v != nil {
			v.Frame = false
			v.BgColor = gocui.ColorCyan
			v.FgColor = gocui.ColorBlack
		}
	}
	if v != nil {
		v.Clear()
		pad := 0
		if maxX > len(text) {
			pad = (maxX - len(text)) / 2
		}
		_, _ = fmt.Fprintln(v, strings.Repeat("\n", height/2+1)+strings.Repeat(" ", pad)+text)
	}
	return
}

//report keeps the last command error for the status view
func (t *ConsoleUI) report(err error) error {
	if err != nil {
		t.msg = err.Error()
	} else {
		t.msg = ""
	}
	t.renderStatus()
	return nil
}

func (t *ConsoleUI) cmdQuit(_ *gocui.View) error {
	t.u.Stop()
	return gocui.ErrQuit
}

func (t *ConsoleUI) cmdNextRound(_ *gocui.View) error {
	return t.report(t.u.Step())
}

func (t *ConsoleUI) cmdRun(_ *gocui.View) error {
	t.u.Run()
	return t.report(nil)
}

func (t *ConsoleUI) cmdStop(_ *gocui.View) error {
	t.u.Stop()
	return t.report(nil)
}

func (t *ConsoleUI) cmdClear(_ *gocui.View) error {
	return t.report(t.u.Clear())
}

func (t *ConsoleUI) cmdSettleWithRandom(_ *gocui.View) error {
	return t.report(t.u.SettleWithRandomData())
}

func (t *ConsoleUI) cmdNextRule(_ *gocui.View) error {
	return t.report(t.u.NextRule())
}

func (t *ConsoleUI) cmdBrush(s automaton.State) func(*gocui.View) error {
	return func(_ *gocui.View) error {
		t.brush = s
		t.renderConfiguration()
		return nil
	}
}

func (t *ConsoleUI) cmdFill(_ *gocui.View) error {
	return t.report(t.u.Fill(t.brush))
}

func (t *ConsoleUI) cmdMouseClick(v *gocui.View) error {
	cx, cy := v.Cursor()
	ox, oy := v.Origin()
	row, col, ok := cellAt(cx, cy, ox, oy, t.u.Options().Size)
	if !ok {
		return nil
	}
	return t.report(t.u.SetCell(row, col, t.brush))
}
