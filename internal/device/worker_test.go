package device

import (
	"io"
	"io/fs"
	"log/slog"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadosappo/nasskan/internal/engine"
	"github.com/tadosappo/nasskan/internal/keycode"
	"github.com/tadosappo/nasskan/internal/poller"
	"github.com/tadosappo/nasskan/internal/rule"
)

type fakeSource struct {
	events []EvdevEvent
	err    error
}

func (f *fakeSource) Name() string  { return "fake" }
func (f *fakeSource) Path() string  { return "/dev/input/eventFAKE" }
func (f *fakeSource) Fd() int       { return 99 }
func (f *fakeSource) Grab() error   { return nil }
func (f *fakeSource) Ungrab() error { return nil }
func (f *fakeSource) Close() error  { return nil }

func (f *fakeSource) ReadEvent() (EvdevEvent, error) {
	if len(f.events) == 0 {
		return EvdevEvent{}, f.err
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func keyEvents(events ...keycode.Event) []EvdevEvent {
	out := make([]EvdevEvent, len(events))
	for i, ev := range events {
		out[i] = EvdevEvent{Outcome: ReadKey, Key: ev}
	}
	return out
}

type fakeSink struct {
	applied   [][]keycode.Event
	forwarded []RawEvent
}

func (s *fakeSink) Apply(batch []keycode.Event) error {
	s.applied = append(s.applied, batch)
	return nil
}

func (s *fakeSink) Forward(ev RawEvent) error {
	s.forwarded = append(s.forwarded, ev)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerDispatchDrainsUntilEAGAIN(t *testing.T) {
	src := &fakeSource{
		events: keyEvents(
			keycode.Event{Type: keycode.Press, Key: keycode.KeyA},
			keycode.Event{Type: keycode.Release, Key: keycode.KeyA},
		),
		err: &fs.PathError{Op: "read", Path: "x", Err: syscall.EAGAIN},
	}
	sink := &fakeSink{}
	km := rule.Keymap{{From: rule.From{Key: keycode.KeyA}, To: rule.To{Key: keycode.KeyB}}}
	w := NewWorker(src, engine.New(km), sink, discardLogger())

	require.NoError(t, w.Dispatch())
	require.Len(t, sink.applied, 2)
	assert.Equal(t, []keycode.Event{{Type: keycode.Press, Key: keycode.KeyB}}, sink.applied[0])
	assert.Equal(t, []keycode.Event{{Type: keycode.Release, Key: keycode.KeyB}}, sink.applied[1])
}

func TestWorkerDispatchReturnsErrDeviceGoneOnENODEV(t *testing.T) {
	src := &fakeSource{err: &fs.PathError{Op: "read", Path: "x", Err: syscall.ENODEV}}
	w := NewWorker(src, engine.New(nil), &fakeSink{}, discardLogger())

	err := w.Dispatch()
	assert.ErrorIs(t, err, poller.ErrDeviceGone)
}

func TestWorkerFdDelegatesToSource(t *testing.T) {
	src := &fakeSource{}
	w := NewWorker(src, engine.New(nil), &fakeSink{}, discardLogger())
	assert.Equal(t, 99, w.Fd())
}

func TestWorkerDispatchForwardsNonKeyEvents(t *testing.T) {
	raw := RawEvent{Type: 0, Code: 0, Value: 0}
	src := &fakeSource{
		events: []EvdevEvent{{Outcome: ReadRaw, Raw: raw}},
		err:    &fs.PathError{Op: "read", Path: "x", Err: syscall.EAGAIN},
	}
	sink := &fakeSink{}
	w := NewWorker(src, engine.New(nil), sink, discardLogger())

	require.NoError(t, w.Dispatch())
	require.Len(t, sink.forwarded, 1)
	assert.Equal(t, raw, sink.forwarded[0])
	assert.Empty(t, sink.applied)
}

func TestWorkerDispatchLogsAndDropsUnknownKeyValue(t *testing.T) {
	src := &fakeSource{
		events: []EvdevEvent{{Outcome: ReadUnknownKeyValue, Raw: RawEvent{Type: 1, Code: uint16(keycode.KeyA), Value: 9}}},
		err:    &fs.PathError{Op: "read", Path: "x", Err: syscall.EAGAIN},
	}
	sink := &fakeSink{}
	w := NewWorker(src, engine.New(nil), sink, discardLogger())

	require.NoError(t, w.Dispatch())
	assert.Empty(t, sink.applied)
	assert.Empty(t, sink.forwarded)
}
