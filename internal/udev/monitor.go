package udev

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// kernelMulticastGroup is the NETLINK_KOBJECT_UEVENT group the kernel
// itself publishes raw uevents to, distinct from the "udev" group (2)
// a running udevd republishes enriched events on. Listening on the
// kernel group means this monitor sees devices the instant the kernel
// creates them, with no dependency on udevd being installed or even
// running.
const kernelMulticastGroup = 1

// Monitor receives device add/remove notifications straight from the
// kernel netlink socket, with no dependency on a udev client library.
type Monitor struct {
	fd int
}

// NewMonitor opens and binds the netlink socket. The caller must
// arrange for Fd to be registered with the poller before events can be
// observed — Monitor itself does no dispatching.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("opening netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelMulticastGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding netlink socket: %w", err)
	}

	return &Monitor{fd: fd}, nil
}

// Fd is the poller-registrable file descriptor.
func (m *Monitor) Fd() int { return m.fd }

func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Event is one device add/remove/change notification.
type Event struct {
	Action     string // "add", "remove", "change", ...
	KObjPath   string // e.g. "/devices/platform/.../input/input3/event3"
	Properties map[string]string
}

// DevicePath returns the /dev node this event refers to, if the
// kernel included a DEVNAME property (it does for every input node).
func (e Event) DevicePath() (string, bool) {
	name, ok := e.Properties["DEVNAME"]
	if !ok {
		return "", false
	}
	return "/dev/" + name, true
}

// Read returns the next raw uevent datagram, parsed. The socket is
// non-blocking: with nothing queued, Read returns an error wrapping
// EAGAIN.
func (m *Monitor) Read() (Event, error) {
	buf := make([]byte, 8192)
	n, err := unix.Read(m.fd, buf)
	if err != nil {
		return Event{}, fmt.Errorf("reading netlink socket: %w", err)
	}
	return parseUevent(buf[:n]), nil
}

// parseUevent decodes a kernel uevent datagram: a "ACTION@DEVPATH"
// header line, NUL-terminated, followed by NUL-terminated KEY=VALUE
// property lines, also NUL-terminated, until the datagram ends.
func parseUevent(raw []byte) Event {
	fields := strings.Split(string(raw), "\x00")

	ev := Event{Properties: make(map[string]string)}
	if len(fields) == 0 {
		return ev
	}

	action, kobjPath, ok := strings.Cut(fields[0], "@")
	if ok {
		ev.Action = action
		ev.KObjPath = kobjPath
	}

	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		ev.Properties[key] = value
	}

	return ev
}
