package keycode

import "fmt"

// EventType mirrors the evdev EV_KEY value encoding: Release is 0,
// Press is 1, Repeat is 2.
type EventType int32

const (
	Release EventType = 0
	Press   EventType = 1
	Repeat  EventType = 2
)

func (t EventType) String() string {
	switch t {
	case Press:
		return "Press"
	case Release:
		return "Release"
	case Repeat:
		return "Repeat"
	default:
		return fmt.Sprintf("EventType(%d)", int32(t))
	}
}

// EventTypeFromValue converts the raw evdev event.value to an
// EventType. The bool result is false for any integer other than
// 0, 1 or 2.
func EventTypeFromValue(value int32) (EventType, bool) {
	switch value {
	case 0:
		return Release, true
	case 1:
		return Press, true
	case 2:
		return Repeat, true
	default:
		return 0, false
	}
}

// Event is a single press/release/repeat of a key.
type Event struct {
	Type EventType
	Key  Key
}

// orderRank gives the event-type tie-break its own scale, independent
// of the evdev wire encoding: Press sorts before Release sorts before
// Repeat, so a tap's synthesized Press(tap.key)/Release(tap.key) pair
// comes out press-then-release regardless of Release's wire value
// being numerically smaller than Press's.
func (t EventType) orderRank() int {
	switch t {
	case Press:
		return 0
	case Release:
		return 1
	default:
		return 2
	}
}

// Less implements the total order emitted batches are sorted by:
// events for modifier keys sort before events for non-modifier keys;
// within a class, ordering is by (key, event_type), with Press before
// Release before Repeat.
func (e Event) Less(other Event) bool {
	_, eIsMod := ModifierForKey(e.Key)
	_, otherIsMod := ModifierForKey(other.Key)

	if eIsMod != otherIsMod {
		return eIsMod
	}
	if e.Key != other.Key {
		return e.Key < other.Key
	}
	return e.Type.orderRank() < other.Type.orderRank()
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.Key)
}
