// Package stats is a minimal metrics facade backed by go-metrics. It exposes
// a StatsReceiver that can be passed down a call tree and scoped per
// component, with a nil implementation for callers that don't report.
package stats

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

// StatsReceiver hands out instruments under a hierarchical scope.
type StatsReceiver interface {
	// Scope returns a receiver that prefixes instrument names with the
	// given path elements.
	Scope(scope ...string) StatsReceiver

	Counter(name ...string) Counter
	Gauge(name ...string) Gauge
	Latency(name ...string) Latency

	// Render marshals all instruments under this receiver's registry.
	Render() ([]byte, error)
}

type Counter interface {
	Inc(delta int64)
	Count() int64
}

type Gauge interface {
	Update(v int64)
	Value() int64
}

// Latency records wall-clock durations. Stop the returned func to record.
type Latency interface {
	Time() func()
	Update(d time.Duration)
}

// DefaultStatsReceiver creates a receiver over a fresh go-metrics registry.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry()}
}

// NilStatsReceiver hands out instruments on a private registry that nothing
// renders. Callers that are not given a receiver default to this.
func NilStatsReceiver(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry(), scope: scope}
}

type defaultStatsReceiver struct {
	registry metrics.Registry
	scope    []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.registry, append(append([]string{}, s.scope...), scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return metrics.GetOrRegisterCounter(s.scoped(name), s.registry)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return metrics.GetOrRegisterGauge(s.scoped(name), s.registry)
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	return &latency{metrics.GetOrRegisterTimer(s.scoped(name), s.registry)}
}

func (s *defaultStatsReceiver) Render() ([]byte, error) {
	out := map[string]interface{}{}
	s.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			out[name] = m.Count()
		case metrics.Gauge:
			out[name] = m.Value()
		case metrics.Timer:
			out[name] = map[string]interface{}{
				"count": m.Count(),
				"mean":  m.Mean(),
				"max":   m.Max(),
			}
		}
	})
	return json.Marshal(out)
}

func (s *defaultStatsReceiver) scoped(name []string) string {
	return strings.Join(append(append([]string{}, s.scope...), name...), "/")
}

type latency struct {
	timer metrics.Timer
}

func (l *latency) Time() func() {
	start := time.Now()
	return func() { l.timer.UpdateSince(start) }
}

func (l *latency) Update(d time.Duration) { l.timer.Update(d) }
