//Package metrics exports step statistics of a universe as Prometheus metrics
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"triautomata/src/automaton"
)

const namespace = "automaton"

var stateLabels = [automaton.NumStates]string{"green", "yellow", "black"}

//Recorder implements universe.Observer
type Recorder struct {
	steps    *prometheus.CounterVec
	duration prometheus.Histogram
	cells    *prometheus.GaugeVec
}

//NewRecorder creates the collectors and registers them on reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Generation steps by rule set and result",
		}, []string{"ruleset", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent on both passes of a step",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		cells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cells",
			Help:      "Cells per state in the committed generation",
		}, []string{"state"}),
	}
	for _, c := range []prometheus.Collector{r.steps, r.duration, r.cells} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

//ObserveStep records one step; counts is the committed generation whether or not the step failed
func (r *Recorder) ObserveStep(ruleSet string, d time.Duration, counts [automaton.NumStates]int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.steps.WithLabelValues(ruleSet, result).Inc()
	r.duration.Observe(d.Seconds())
	for i, n := range counts {
		r.cells.WithLabelValues(stateLabels[i]).Set(float64(n))
	}
}

//Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

//Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	srv := &http.Server{Handler: Handler(g), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
