package device

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/tadosappo/nasskan/internal/engine"
	"github.com/tadosappo/nasskan/internal/poller"
)

// Worker is the per-keyboard remapping pipeline: one Source, one
// Engine bound to that keyboard's matched Keymap, and one Sink, all
// owned exclusively by this worker. It implements poller.Worker so the
// process's single poller can drive it.
type Worker struct {
	source Source
	engine *engine.Engine
	sink   Sink
	logger *slog.Logger
}

// NewWorker binds source to engine and sink. The caller must have
// already called source.Grab(); NewWorker does not grab or release
// the source itself.
func NewWorker(source Source, eng *engine.Engine, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{source: source, engine: eng, sink: sink, logger: logger}
}

func (w *Worker) Fd() int {
	return w.source.Fd()
}

// Dispatch drains every event currently queued on the source, feeding
// each key event through the engine and writing the resulting batch to
// the sink before the next event is read, preserving per-device FIFO
// order. Non-keyboard events are forwarded to the sink unchanged,
// without engine involvement; an EV_KEY event with an unrecognized
// value is logged and dropped. It stops at EAGAIN (the edge-triggered
// watch has nothing left to report) and returns poller.ErrDeviceGone
// on ENODEV so the caller can release this keyboard.
func (w *Worker) Dispatch() error {
	for {
		ev, err := w.source.ReadEvent()
		if err != nil {
			// ReadEvent's underlying *os.File surfaces kernel errors as
			// syscall.Errno wrapped in *fs.PathError; errors.Is unwraps
			// the PathError before comparing the errno.
			if errors.Is(err, syscall.EAGAIN) {
				return nil
			}
			if errors.Is(err, syscall.ENODEV) {
				return poller.ErrDeviceGone
			}
			return fmt.Errorf("reading from %s: %w", w.source.Path(), err)
		}

		switch ev.Outcome {
		case ReadKey:
			batch := w.engine.Remap(ev.Key)
			if len(batch) == 0 {
				continue
			}
			if err := w.sink.Apply(batch); err != nil {
				w.logger.Error("writing virtual events", "device", w.source.Name(), "error", err)
			}
		case ReadRaw:
			if err := w.sink.Forward(ev.Raw); err != nil {
				w.logger.Error("forwarding non-keyboard event", "device", w.source.Name(), "error", err)
			}
		case ReadUnknownKeyValue:
			w.logger.Warn("dropping key event with unrecognized value", "device", w.source.Name(), "code", ev.Raw.Code, "value", ev.Raw.Value)
		}
	}
}

// Close releases the source's grab and closes both halves of the
// pipeline. Errors are collected, not short-circuited, so a failure
// releasing the source never leaves the sink's uinput fd leaked.
func (w *Worker) Close() error {
	var errs []error
	if err := w.source.Ungrab(); err != nil {
		errs = append(errs, err)
	}
	if err := w.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.sink.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
