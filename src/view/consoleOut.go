package view

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"triautomata/src/automaton"
	"triautomata/src/universe"
)

//ConsoleOut is the batch mode viewer: it prints the progress and the final board as plain text
type ConsoleOut struct {
	u         universe.Universe
	w         io.Writer
	startTime time.Time
	done      bool
}

//NewConsoleOut creates a viewer printing to w, nil means stdout
func NewConsoleOut(w io.Writer) *ConsoleOut {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleOut{w: w}
}

func (c *ConsoleOut) Refresh() {
	st := c.u.Status()
	switch st.RunningMode {
	case universe.RunningStateFinished:
		if c.done {
			return
		}
		c.done = true
		resultData := map[string]interface{}{
			"Last iteration": st.IterationNum,
			"Total time":     time.Since(c.startTime).Round(time.Millisecond),
			"Rule set":       st.RuleSet,
		}
		for i, n := range st.Counts {
			resultData["Cells "+StateName(automaton.State(i))] = n
		}
		if st.LastError != "" {
			resultData["Error"] = st.LastError
		}
		_, _ = fmt.Fprintln(c.w, "\nFinished:")
		c.printHashData(resultData)
		_, _ = fmt.Fprintln(c.w, RenderText(c.u.Grid()))
	case universe.RunningStateRun:
		c.done = false
		if st.IterationNum%10 == 0 {
			_, _ = fmt.Fprintf(c.w, "  Iterations done: %v\n", st.IterationNum)
		}
	}
}

func (c *ConsoleOut) Register(u universe.Universe) {
	c.u = u
	o := c.u.Options()
	_, _ = fmt.Fprintln(c.w, "Running configuration:")
	c.printHashData(map[string]interface{}{
		"Dimension":      fmt.Sprintf("%v x %v", o.Size, o.Size),
		"Interval":       o.Interval,
		"Max iterations": fmt.Sprintf("%v steps", o.MaxSteps),
		"Rule set":       c.u.Status().RuleSet,
		"Workers":        o.Workers,
	})
}

func (c *ConsoleOut) Start() {
	c.startTime = time.Now()
	_, _ = fmt.Fprintln(c.w, "\nSimulation started...")
}

func (c *ConsoleOut) printHashData(d map[string]interface{}) {
	propNames := make([]string, 0, len(d))
	for k := range d {
		propNames = append(propNames, k)
	}
	sort.Strings(propNames)
	for _, propName := range propNames {
		_, _ = fmt.Fprintf(c.w, "  %s: %v\n", propName, d[propName])
	}
}
