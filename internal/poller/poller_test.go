package poller

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pipeWorker dispatches a byte count over a channel each time its read
// end becomes readable, draining it fully (edge-triggered discipline).
type pipeWorker struct {
	r       *os.File
	reads   chan int
	failEOF bool
}

func (w *pipeWorker) Fd() int { return int(w.r.Fd()) }

func (w *pipeWorker) Dispatch() error {
	// os.File.Fd puts the descriptor in blocking mode, so switch it back
	// to non-blocking and read it directly: the loop must end at EAGAIN.
	fd := int(w.r.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	buf := make([]byte, 4096)
	total := 0
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			break
		}
		if n == 0 {
			if w.failEOF {
				return ErrDeviceGone
			}
			break
		}
		total += n
	}
	w.reads <- total
	return nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollerDispatchesOnReadiness(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p, err := New(newLogger())
	require.NoError(t, err)
	defer p.Close()

	worker := &pipeWorker{r: r, reads: make(chan int, 4)}
	require.NoError(t, p.Register(worker))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case n := <-worker.reads:
		require.Equal(t, 5, n)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	cancel()
	<-done
}

func TestPollerDeregistersOnErrDeviceGone(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	p, err := New(newLogger())
	require.NoError(t, err)
	defer p.Close()

	worker := &pipeWorker{r: r, reads: make(chan int, 4), failEOF: true}
	fd := worker.Fd()
	require.NoError(t, p.Register(worker))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	w.Close() // EOF on r

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, ok := p.workers[fd]
		return !ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
