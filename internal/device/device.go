// Package device adapts the physical world to internal/engine: a
// Source turns evdev key activity into keycode.Events, and a Sink
// turns an engine's output batch into uinput activity on a virtual
// keyboard. Nothing in internal/engine or internal/rule knows these
// types exist.
package device

import "github.com/tadosappo/nasskan/internal/keycode"

// RawEvent is a kernel input event carried in its raw (type, code,
// value) form rather than resolved to a keycode.Event: either a
// non-EV_KEY event (EV_SYN, EV_MSC, ...) to forward to the sink
// unchanged, or an EV_KEY event whose value isn't one nasskan
// recognizes, kept around only so the caller can log it.
type RawEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// ReadOutcome tags which field of EvdevEvent a ReadEvent call filled.
type ReadOutcome int

const (
	// ReadKey: Key is a resolved press/release/repeat for the engine
	// to remap.
	ReadKey ReadOutcome = iota
	// ReadRaw: Raw is a non-EV_KEY event to forward to the sink
	// unchanged, bypassing the engine entirely.
	ReadRaw
	// ReadUnknownKeyValue: Raw is an EV_KEY event whose value is
	// neither 0, 1 nor 2. It is logged and dropped, never forwarded.
	ReadUnknownKeyValue
)

// EvdevEvent is what Source.ReadEvent returns for one queued kernel
// event. Exactly one of Key or Raw is meaningful, selected by Outcome.
type EvdevEvent struct {
	Outcome ReadOutcome
	Key     keycode.Event
	Raw     RawEvent
}

// Source is one physical keyboard being remapped.
type Source interface {
	// Name is the device's evdev name, used for logging and for
	// matching the "virtual" self-exclusion check.
	Name() string
	// Path is the /dev/input/eventN path this source was opened from.
	Path() string
	// Fd is the file descriptor the poller registers for readiness,
	// watched edge-triggered.
	Fd() int
	// ReadEvent returns the device's next queued kernel input event,
	// classified by EvdevEvent.Outcome. It never blocks: on a
	// non-blocking fd with nothing queued it returns an error wrapping
	// EAGAIN.
	ReadEvent() (EvdevEvent, error)
	// Grab takes exclusive control of the device: its raw events stop
	// reaching any other reader on the system, the precondition for
	// remapping it safely.
	Grab() error
	Ungrab() error
	Close() error
}

// Sink is the single virtual keyboard a device worker drives.
type Sink interface {
	// Apply writes every event in batch, in order, followed by one
	// synchronisation marker for the whole batch. Batches are already
	// sorted by the total event order by the time they reach here; Apply
	// must not reorder them.
	Apply(batch []keycode.Event) error
	// Forward writes a non-keyboard event through unchanged, with no
	// engine involvement and no batch framing of its own.
	Forward(ev RawEvent) error
	Close() error
}
