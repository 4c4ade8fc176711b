package device

import (
	"fmt"
	"path/filepath"
	"strings"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/tadosappo/nasskan/internal/keycode"
)

// virtualDeviceMarker is the name substring nasskan's own uinput sinks
// carry, so a re-scan never grabs a keyboard this process created.
const virtualDeviceMarker = "nasskan-virtual"

// EvdevSource is a Source backed by a real kernel input device.
type EvdevSource struct {
	path string
	name string
	dev  *evdev.InputDevice
}

// OpenEvdevSource opens path and returns a Source if it is a
// keyboard-capable device, not one of nasskan's own virtual outputs.
// It returns (nil, false, nil) for a device that should be silently
// skipped, and a non-nil error only for genuine I/O failures.
func OpenEvdevSource(path string) (*EvdevSource, bool, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", path, err)
	}

	name, err := dev.Name()
	if err != nil {
		dev.Close()
		return nil, false, fmt.Errorf("reading name of %s: %w", path, err)
	}

	if strings.Contains(strings.ToLower(name), virtualDeviceMarker) {
		dev.Close()
		return nil, false, nil
	}

	if !hasLetterKeys(dev) {
		dev.Close()
		return nil, false, nil
	}

	// The poller drives this device edge-triggered: Dispatch must be
	// able to drain the fd to EAGAIN rather than block the
	// single-threaded event loop waiting on the next kernel event.
	if err := unix.SetNonblock(int(dev.File().Fd()), true); err != nil {
		dev.Close()
		return nil, false, fmt.Errorf("setting %s non-blocking: %w", path, err)
	}

	return &EvdevSource{path: path, name: name, dev: dev}, true, nil
}

// hasLetterKeys applies the "it must claim KEY_A..KEY_Z" heuristic to
// exclude single-purpose devices (power buttons, mice with stray
// EV_KEY capabilities) that happen to claim EV_KEY support without
// being a keyboard.
func hasLetterKeys(dev *evdev.InputDevice) bool {
	for _, t := range dev.CapableTypes() {
		if t != evdev.EV_KEY {
			continue
		}
		for _, code := range dev.CapableEvents(evdev.EV_KEY) {
			if uint16(code) >= uint16(keycode.KeyA) && uint16(code) <= uint16(keycode.KeyZ) {
				return true
			}
		}
	}
	return false
}

// DiscoverEvdevSources globs /dev/input/event* and opens every
// keyboard-capable device found there. Devices that fail to open or
// are not keyboards are skipped, not reported as errors: device
// discovery is best-effort.
func DiscoverEvdevSources() ([]*EvdevSource, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("globbing input devices: %w", err)
	}

	var sources []*EvdevSource
	for _, path := range matches {
		src, ok, err := OpenEvdevSource(path)
		if err != nil || !ok {
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (s *EvdevSource) Name() string { return s.name }
func (s *EvdevSource) Path() string { return s.path }

// Fd is the poller-registrable file descriptor: the same one ReadOne
// reads from, so epoll readiness and the evdev client's event queue
// never diverge.
func (s *EvdevSource) Fd() int {
	return int(s.dev.File().Fd())
}

func (s *EvdevSource) Grab() error {
	if err := s.dev.Grab(); err != nil {
		return fmt.Errorf("grabbing %s: %w", s.path, err)
	}
	return nil
}

func (s *EvdevSource) Ungrab() error {
	if err := s.dev.Ungrab(); err != nil {
		return fmt.Errorf("releasing %s: %w", s.path, err)
	}
	return nil
}

func (s *EvdevSource) Close() error {
	return s.dev.Close()
}

// ReadEvent returns the next queued kernel input event, or an error
// wrapping EAGAIN if the fd has been drained. Non-EV_KEY events
// (EV_SYN, EV_MSC, LED state acks, ...) come back as ReadRaw for the
// caller to forward unchanged; an EV_KEY event whose value isn't 0, 1
// or 2 comes back as ReadUnknownKeyValue for the caller to log.
func (s *EvdevSource) ReadEvent() (EvdevEvent, error) {
	ev, err := s.dev.ReadOne()
	if err != nil {
		return EvdevEvent{}, err
	}

	if ev.Type != evdev.EV_KEY {
		return EvdevEvent{Outcome: ReadRaw, Raw: RawEvent{Type: uint16(ev.Type), Code: uint16(ev.Code), Value: ev.Value}}, nil
	}

	et, ok := keycode.EventTypeFromValue(ev.Value)
	if !ok {
		return EvdevEvent{Outcome: ReadUnknownKeyValue, Raw: RawEvent{Type: uint16(ev.Type), Code: uint16(ev.Code), Value: ev.Value}}, nil
	}

	return EvdevEvent{Outcome: ReadKey, Key: keycode.Event{Type: et, Key: keycode.Key(ev.Code)}}, nil
}
