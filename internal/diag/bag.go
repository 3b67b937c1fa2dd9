package diag

// Bag collects diagnostics of one validation run in insertion order.
// The zero value is ready to use.
type Bag struct {
	items []Diagnostic
}

func NewBag(capacity int) *Bag {
	if capacity < 0 {
		capacity = 0
	}
	return &Bag{items: make([]Diagnostic, 0, capacity)}
}

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// AddAll appends diagnostics preserving their order.
func (b *Bag) AddAll(ds []Diagnostic) {
	b.items = append(b.items, ds...)
}

// Merge appends every diagnostic of other.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// HasErrors reports whether at least one diagnostic is an error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity == SevError {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a copy of the collected diagnostics; never nil.
func (b *Bag) Items() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Counts returns the number of diagnostics per severity.
func (b *Bag) Counts() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for i := range b.items {
		counts[b.items[i].Severity]++
	}
	return counts
}
