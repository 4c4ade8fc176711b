// Package eventbatch collects the events a single Engine.Remap call
// produces into a deduplicated, totally ordered batch, ready to be
// handed to a sink as one atomic frame.
package eventbatch

import (
	"sort"

	"github.com/tadosappo/nasskan/internal/keycode"
)

// OrderedSet accumulates Events, silently absorbing duplicates, and
// yields them sorted by the total event order (modifier events first,
// then by key code, then by event type).
type OrderedSet struct {
	members map[keycode.Event]struct{}
}

// New returns an empty OrderedSet.
func New() *OrderedSet {
	return &OrderedSet{members: make(map[keycode.Event]struct{})}
}

// Add inserts e. Adding the same Event twice has no additional effect.
func (s *OrderedSet) Add(e keycode.Event) {
	s.members[e] = struct{}{}
}

// AddAll inserts every event in es.
func (s *OrderedSet) AddAll(es ...keycode.Event) {
	for _, e := range es {
		s.Add(e)
	}
}

// Slice returns the accumulated events sorted by the total event
// order. It is safe to call more than once; each call re-sorts a fresh
// copy.
func (s *OrderedSet) Slice() []keycode.Event {
	out := make([]keycode.Event, 0, len(s.members))
	for e := range s.members {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out
}

// Len reports how many distinct events have been added so far.
func (s *OrderedSet) Len() int {
	return len(s.members)
}
