// Package poller implements a single-threaded, cooperative
// readiness-based event loop: a single epoll instance dispatches
// readiness to one worker at a time, workers drain their fd until
// EAGAIN since the watch is edge-triggered, and a worker may
// deregister itself (or register new workers) from within its own
// Dispatch call.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrDeviceGone is the sentinel a Worker returns from Dispatch to ask
// the poller to deregister it — e.g. ENODEV after a keyboard is
// unplugged. Any other non-nil error is logged and the worker stays
// registered: a transient evdev/uinput error retries on the next
// readiness notification rather than tearing down the device.
var ErrDeviceGone = errors.New("device gone")

// Worker is one registered fd: an evdev source, or the udev hot-plug
// monitor.
type Worker interface {
	Fd() int
	// Dispatch is called once per readiness notification. The
	// underlying fd is edge-triggered, so Dispatch must itself loop
	// until it observes EAGAIN rather than assuming one readiness
	// event means exactly one unit of work.
	Dispatch() error
}

// Poller owns the epoll fd and the worker registry.
type Poller struct {
	epfd   int
	logger *slog.Logger

	mu      sync.Mutex
	workers map[int]Worker
}

// New creates an epoll instance.
func New(logger *slog.Logger) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Poller{
		epfd:    epfd,
		logger:  logger,
		workers: make(map[int]Worker),
	}, nil
}

// Register starts watching w.Fd() for readiness, edge-triggered. It
// is safe to call from within another worker's Dispatch.
func (p *Poller) Register(w Worker) error {
	fd := w.Fd()

	p.mu.Lock()
	p.workers[fd] = w
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.workers, fd)
		p.mu.Unlock()
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Deregister stops watching fd. It is safe to call from within the
// Dispatch of the worker being deregistered.
func (p *Poller) Deregister(fd int) error {
	p.mu.Lock()
	_, ok := p.workers[fd]
	delete(p.workers, fd)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// Run blocks, dispatching readiness events one at a time until ctx is
// canceled or epoll_wait fails. There is exactly one worker running at
// any instant: Run never calls a second Dispatch until the first one
// returns.
func (p *Poller) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, 32)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.EpollWait(p.epfd, events, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)

			p.mu.Lock()
			w, ok := p.workers[fd]
			p.mu.Unlock()
			if !ok {
				// Deregistered by an earlier worker's Dispatch within
				// this same batch.
				continue
			}

			if err := w.Dispatch(); err != nil {
				if errors.Is(err, ErrDeviceGone) {
					if derr := p.Deregister(fd); derr != nil {
						p.logger.Warn("deregistering worker", "fd", fd, "error", derr)
					}
					if closer, ok := w.(interface{ Close() error }); ok {
						if cerr := closer.Close(); cerr != nil {
							p.logger.Warn("closing deregistered worker", "fd", fd, "error", cerr)
						}
					}
					p.logger.Info("worker deregistered", "fd", fd)
					continue
				}
				p.logger.Error("worker dispatch failed", "fd", fd, "error", err)
			}
		}
	}
}
