package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/integrii/flaggy"
	"github.com/prometheus/client_golang/prometheus"

	"triautomata/src/automaton"
	"triautomata/src/metrics"
	"triautomata/src/rulefile"
	"triautomata/src/universe"
	"triautomata/src/view"
)

var (
	//cells are [x, y, state]
	templates = []universe.Template{
		{
			Name:  "spark",
			Descr: "a few burning trees near the top left corner",
			Cells: [][]int{
				{3, 3, 1}, {4, 3, 1},
				{3, 4, 1},
				{10, 8, 1},
			},
		},
		{
			Name:  "firebreak",
			Descr: "a burning tree next to a wall of ash",
			Cells: [][]int{
				{2, 2, 1},
				{6, 0, 2}, {6, 1, 2}, {6, 2, 2}, {6, 3, 2}, {6, 4, 2}, {6, 5, 2}, {6, 6, 2},
			},
		},
		{
			Name:  "stripes",
			Descr: "alternating yellow and black stripes",
			Cells: [][]int{
				{0, 0, 1}, {1, 1, 2}, {2, 2, 1}, {3, 3, 2}, {4, 4, 1}, {5, 5, 2},
				{0, 5, 1}, {1, 4, 2}, {2, 3, 1}, {3, 2, 2}, {4, 1, 1}, {5, 0, 2},
			},
		},
	}

	engines = map[string]func(workers int) int{
		"sequential": func(int) int { return 1 },
		"parallel": func(workers int) int {
			if workers > 0 {
				return workers
			}
			return runtime.NumCPU()
		},
	}
)

type EnvOptions struct {
	interactive bool
	randomData  bool
	engine      string
	template    string
	rulesFile   string
	logFile     string
	metricsAddr string
}

func main() {
	eo, uo := initOptions()

	logger, closeLog, err := newLogger(eo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()
	uo.Logger = logger

	if err := run(eo, uo); err != nil {
		logger.Error("exit", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		closeLog()
		os.Exit(1)
	}
}

func run(eo *EnvOptions, uo *universe.Options) error {
	sets := rulefile.Examples()
	if eo.rulesFile != "" {
		loaded, err := rulefile.Load(eo.rulesFile)
		if err != nil {
			return err
		}
		sets = append(sets, loaded...)
	}
	registry, err := automaton.Builtin().With(sets...)
	if err != nil {
		return err
	}
	uo.Registry = registry

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if eo.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			return err
		}
		uo.Observer = rec
		go func() {
			if err := metrics.Serve(ctx, eo.metricsAddr, reg); err != nil {
				uo.Logger.Error("metrics server", slog.String("addr", eo.metricsAddr), slog.Any("error", err))
			}
		}()
	}

	var stateCh chan universe.Status
	if !eo.interactive {
		stateCh = make(chan universe.Status, 10) //the buffered channel to getting the universe status
	}

	u, err := universe.NewBaseUniverse(uo, stateCh)
	if err != nil {
		return err
	}
	defer u.Close()

	for _, t := range templates {
		if err := u.AddTemplate(t); err != nil {
			return err
		}
	}

	if eo.randomData {
		err = u.SettleWithRandomData()
	} else {
		err = u.SettleTemplate(eo.template)
	}
	if err != nil {
		return err
	}

	if eo.interactive {
		v, err := view.NewViewTerminal()
		if err != nil {
			return err
		}
		u.RegisterViewer(v)
		v.Start()
		return nil
	}

	v := view.NewConsoleOut(os.Stdout)
	u.RegisterViewer(v)
	v.Start()
	u.Run()
	for {
		select {
		case st := <-stateCh:
			if st.RunningMode == universe.RunningStateFinished {
				//waits for the viewers to print the final board
				u.Stop()
				if st.LastError != "" {
					return fmt.Errorf("step %d: %s", st.IterationNum+1, st.LastError)
				}
				return nil
			}
		case <-ctx.Done():
			go func() {
				for range stateCh {
				}
			}()
			u.Stop()
			return nil
		}
	}
}

//newLogger sends logs to stderr in batch mode; the terminal UI owns the screen, so logs go to a file or nowhere
func newLogger(eo *EnvOptions) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case eo.logFile != "":
		f, err := os.OpenFile(eo.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case eo.interactive:
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})), closeFn, nil
}

func initOptions() (eo *EnvOptions, uo *universe.Options) {

	o := universe.DefaultUniverseOptions
	uo = &o
	engineNames := make([]string, 0, len(engines))
	for k := range engines {
		engineNames = append(engineNames, k)
	}
	eo = &EnvOptions{engine: "sequential", template: templates[0].Name}
	workers := 0
	flaggy.DefaultParser.ShowHelpOnUnexpected = true
	flaggy.Int(&uo.Size, "x", "size", "Side of the square simulation field")
	flaggy.Duration(&uo.Interval, "i", "interval", "Simulation speed (interval between the steps) in format the number with 'ms' suffix, for example 150ms")
	flaggy.Int(&uo.MaxSteps, "s", "maxSteps", "Limit the simulation to maxSteps, 0 is unlimited")
	flaggy.String(&uo.RuleSet, "u", "rules", "Rule set to start with")
	flaggy.String(&eo.rulesFile, "f", "rulesFile", "YAML file with additional rule sets")
	flaggy.String(&eo.engine, "e", "engine", "Engine to use ["+strings.Join(engineNames, "|")+"]")
	flaggy.Int(&workers, "w", "workers", "Workers of the parallel engine, 0 means one per CPU")
	flaggy.Bool(&eo.interactive, "n", "interactive", "Start interactive mode")
	flaggy.Bool(&eo.randomData, "r", "random", "Settle with random data")
	flaggy.String(&eo.template, "t", "template", "Seeding template ["+templateNames()+"]")
	flaggy.Int64(&uo.Seed, "", "seed", "Seed of the random data")
	flaggy.String(&eo.logFile, "l", "log", "Write logs to the file")
	flaggy.String(&eo.metricsAddr, "m", "metrics", "Serve Prometheus metrics on the address, for example :9100")

	flaggy.Parse()

	workersOf, ok := engines[eo.engine]
	if !ok {
		flaggy.ShowHelpAndExit("unknown engine")
	}
	if workers < 0 {
		flaggy.ShowHelpAndExit("workers must not be negative")
	}
	uo.Workers = workersOf(workers)

	if !eo.interactive {
		flaggy.ShowHelp("")
	}

	return
}

func templateNames() string {
	names := make([]string, 0, len(templates))
	for _, t := range templates {
		names = append(names, t.Name)
	}
	return strings.Join(names, "|")
}
