package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the wall time of the most recent run of each phase.
type Profiler struct {
	Durations map[Phase]time.Duration
	Counts    map[string]int

	starts map[Phase]time.Time
	now    func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Durations: make(map[Phase]time.Duration),
		Counts:    make(map[string]int),
		starts:    make(map[Phase]time.Time),
		now:       time.Now,
	}
}

func (p *Profiler) Begin(phase Phase) {
	p.starts[phase] = p.now()
}

// End records and returns the time since the matching Begin. Without one it returns 0.
func (p *Profiler) End(phase Phase) time.Duration {
	start, ok := p.starts[phase]
	if !ok {
		return 0
	}
	delete(p.starts, phase)
	d := p.now().Sub(start)
	p.Durations[phase] = d
	return d
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) Reset() {
	clear(p.Durations)
	clear(p.starts)
}

// Total is the sum of the recorded phase durations.
func (p *Profiler) Total() time.Duration {
	var total time.Duration
	for _, d := range p.Durations {
		total += d
	}
	return total
}

func (p *Profiler) String() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, phase := range framePhases {
		dur, ok := p.Durations[phase]
		if !ok {
			continue
		}
		ms := float64(dur.Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", phase, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}
