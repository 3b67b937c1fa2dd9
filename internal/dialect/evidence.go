package dialect

// SignalID names one pattern the detector looks for.
type SignalID uint8

const (
	SignalFormatVersion SignalID = iota + 1
	SignalResources
	SignalResourceType
	SignalServerlessResources
	SignalServerlessProvider
)

// Signal is a pattern that matched, with the byte offset of its first match.
type Signal struct {
	ID     SignalID
	Reason string
	Offset int
}

// Evidence is the set of signals observed in one document.
type Evidence struct {
	signals []Signal
}

// Observe collects every known signal present in text.
func Observe(text string) *Evidence {
	e := &Evidence{signals: make([]Signal, 0, len(patterns))}
	for _, p := range patterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		e.signals = append(e.signals, Signal{ID: p.id, Reason: p.reason, Offset: loc[0]})
	}
	return e
}

// Has reports whether the signal was observed.
func (e *Evidence) Has(id SignalID) bool {
	if e == nil {
		return false
	}
	for _, s := range e.signals {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Signals returns the observed signals in pattern order.
func (e *Evidence) Signals() []Signal {
	if e == nil {
		return nil
	}
	return e.signals
}
