package broadcast

import (
	"slices"

	"github.com/smazurov/camwatch/internal/detection"
)

// FilterOptions are the per-subscriber surfacing rules.
type FilterOptions struct {
	// ThrottleN > 0 considers only every Nth received event.
	ThrottleN int
	// Deduplicate drops an event whose label set equals the last surfaced one.
	Deduplicate bool
	// PerCamera keeps a separate last label set for each camera id.
	PerCamera bool
}

// Filter holds one subscriber's private throttle and dedup state.
type Filter struct {
	opts     FilterOptions
	received uint64
	last     map[string][]string
}

// NewFilter returns a filter with no history.
func NewFilter(opts FilterOptions) *Filter {
	return &Filter{opts: opts, last: make(map[string][]string)}
}

// Accept counts e and reports whether it should be surfaced. Dropped events
// only advance the counter.
func (f *Filter) Accept(e detection.Event) bool {
	f.received++

	if f.opts.ThrottleN > 0 && f.received%uint64(f.opts.ThrottleN) != 0 {
		return false
	}
	if !f.opts.Deduplicate {
		return true
	}

	key := ""
	if f.opts.PerCamera {
		key = e.CameraID
	}
	labels := e.LabelSet()
	if prev, ok := f.last[key]; ok && slices.Equal(prev, labels) {
		return false
	}
	f.last[key] = labels
	return true
}

// Received returns how many events have been offered to the filter.
func (f *Filter) Received() uint64 {
	return f.received
}
