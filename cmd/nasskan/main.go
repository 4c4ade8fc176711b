// nasskan is a user-space keyboard remapper: it grabs matched physical
// keyboards, runs every key event through internal/engine's remapping
// state machine, and re-emits the result on a synthetic uinput
// keyboard per device.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tadosappo/nasskan/internal/config"
	"github.com/tadosappo/nasskan/internal/device"
	"github.com/tadosappo/nasskan/internal/engine"
	"github.com/tadosappo/nasskan/internal/poller"
	"github.com/tadosappo/nasskan/internal/udev"
)

func main() {
	logger := newLogger(os.Getenv("NASSKAN_LOG"))
	slog.SetDefault(logger)

	// NASSKAN_CONFIG is a test-harness override, never a documented
	// flag: the daemon is configured by environment alone and supports
	// no runtime reconfiguration.
	cfg, err := config.Load(os.Getenv("NASSKAN_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("config loaded", "devices", len(cfg.Devices))

	p, err := poller.New(logger)
	if err != nil {
		logger.Error("failed to create poller", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	d := &daemon{cfg: cfg, poller: p, logger: logger, managed: make(map[string]*device.Worker)}
	defer d.closeAll()

	monitor, err := udev.NewMonitor()
	if err != nil {
		logger.Error("failed to open udev monitor", "error", err)
		os.Exit(1)
	}
	defer monitor.Close()

	if err := p.Register(&hotplugWorker{monitor: monitor, daemon: d}); err != nil {
		logger.Error("failed to register udev monitor", "error", err)
		os.Exit(1)
	}

	d.scanExisting()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poller stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("nasskan stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// daemon owns the registry of currently-managed keyboards. It is only
// touched from main's goroutine: by scanExisting before the poller
// runs, from within poller Dispatch calls, and by closeAll after Run
// returns. The poller's single-worker-at-a-time guarantee is what keeps
// access to managed safe without a mutex.
type daemon struct {
	cfg     *config.Config
	poller  *poller.Poller
	logger  *slog.Logger
	managed map[string]*device.Worker
}

// scanExisting grabs every already-connected keyboard that matches a
// configured device block. Keyboards that don't match any block are
// left ungrabbed and untouched.
func (d *daemon) scanExisting() {
	sources, err := device.DiscoverEvdevSources()
	if err != nil {
		d.logger.Error("scanning existing input devices", "error", err)
		return
	}
	for _, src := range sources {
		d.manage(src)
	}
}

// onHotplug is called for every udev "add" action naming an
// /dev/input/eventN node. It opens the device fresh rather than
// reusing anything from scanExisting, since the device didn't exist
// at scan time.
func (d *daemon) onHotplug(path string) {
	if _, already := d.managed[path]; already {
		return
	}
	src, ok, err := device.OpenEvdevSource(path)
	if err != nil {
		d.logger.Warn("opening hot-plugged device", "path", path, "error", err)
		return
	}
	if !ok {
		return
	}
	d.manage(src)
}

// manage matches src against the configured device blocks in order
// and, on the first match, grabs it, opens its uinput sink, and
// registers its Worker with the poller. A src matching no block is
// closed and otherwise ignored: only keyboards an operator explicitly
// configured get remapped.
func (d *daemon) manage(src *device.EvdevSource) {
	dc, matched := d.match(src.Path())
	if !matched {
		src.Close()
		return
	}

	if err := src.Grab(); err != nil {
		// Most likely another instance already grabbed this device.
		// Report and skip it; the rest of the daemon keeps running.
		d.logger.Warn("could not grab device, skipping", "name", src.Name(), "path", src.Path(), "error", err)
		src.Close()
		return
	}

	sink, err := device.NewUinputSink(src.Name())
	if err != nil {
		d.logger.Warn("could not create virtual keyboard, skipping device", "name", src.Name(), "error", err)
		src.Ungrab()
		src.Close()
		return
	}

	eng := engine.New(dc.Keymap)
	w := device.NewWorker(src, eng, sink, d.logger)
	if err := d.poller.Register(w); err != nil {
		d.logger.Error("registering device worker", "name", src.Name(), "error", err)
		if cerr := w.Close(); cerr != nil {
			d.logger.Warn("closing device worker after failed registration", "name", src.Name(), "error", cerr)
		}
		return
	}

	d.managed[src.Path()] = w
	d.logger.Info("managing keyboard", "name", src.Name(), "path", src.Path())
}

func (d *daemon) match(path string) (config.DeviceConfig, bool) {
	props, err := udev.ReadProperties(path)
	if err != nil {
		d.logger.Warn("reading udev properties", "path", path, "error", err)
		return config.DeviceConfig{}, false
	}
	for _, dc := range d.cfg.Devices {
		if props.Matches(dc.If) {
			return dc, true
		}
	}
	return config.DeviceConfig{}, false
}

// remove releases a managed keyboard after udev reports it gone, and
// every managed keyboard at shutdown via closeAll.
func (d *daemon) remove(path string) {
	w, ok := d.managed[path]
	if !ok {
		return
	}
	delete(d.managed, path)
	if err := d.poller.Deregister(w.Fd()); err != nil {
		d.logger.Warn("deregistering device worker", "path", path, "error", err)
	}
	if err := w.Close(); err != nil {
		d.logger.Warn("closing device worker", "path", path, "error", err)
	}
	d.logger.Info("keyboard removed", "path", path)
}

func (d *daemon) closeAll() {
	for path := range d.managed {
		d.remove(path)
	}
}

// hotplugWorker adapts the udev.Monitor to poller.Worker: each
// readiness notification may carry several queued uevents, drained
// edge-triggered to EAGAIN like every other worker.
type hotplugWorker struct {
	monitor *udev.Monitor
	daemon  *daemon
}

func (h *hotplugWorker) Fd() int { return h.monitor.Fd() }

func (h *hotplugWorker) Dispatch() error {
	for {
		ev, err := h.monitor.Read()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			return fmt.Errorf("reading udev monitor: %w", err)
		}

		path, ok := ev.DevicePath()
		if !ok || !strings.HasPrefix(path, "/dev/input/event") {
			continue
		}

		switch ev.Action {
		case "add":
			h.daemon.onHotplug(path)
		case "remove":
			h.daemon.remove(path)
		}
	}
}
