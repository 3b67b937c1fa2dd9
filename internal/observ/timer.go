// Package observ measures where a validation run spends its time.
package observ

import "time"

// Phase is one measured step of a run.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
	done  bool
}

// Timer collects the phases of a single run. It is not safe for concurrent use.
type Timer struct {
	phases []Phase
	now    func() time.Time
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4), now: time.Now} }

// Mark identifies a started phase.
type Mark struct {
	t   *Timer
	idx int
}

// Begin starts a phase.
func (t *Timer) Begin(name string) Mark {
	t.phases = append(t.phases, Phase{Name: name, Start: t.now()})
	return Mark{t: t, idx: len(t.phases) - 1}
}

// End finishes the phase with an optional note. Ending twice keeps the first
// measurement; the zero Mark is ignored.
func (m Mark) End(note string) {
	if m.t == nil || m.idx >= len(m.t.phases) {
		return
	}
	p := &m.t.phases[m.idx]
	if p.done {
		return
	}
	p.Dur = m.t.now().Sub(p.Start)
	p.Note = note
	p.done = true
}

// Total is the sum of the finished phases.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
	}
	return total
}

// Fields returns "<phase>_ms" entries for structured log lines.
func (t *Timer) Fields() map[string]any {
	fields := make(map[string]any, len(t.phases)+1)
	for _, p := range t.phases {
		if p.done {
			fields[p.Name+"_ms"] = millis(p.Dur)
		}
	}
	fields["total_ms"] = millis(t.Total())
	return fields
}

// Phases returns a copy of the recorded phases.
func (t *Timer) Phases() []Phase {
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
