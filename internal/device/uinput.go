package device

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tadosappo/nasskan/internal/keycode"
)

// uinput ioctl requests and the handful of input_event constants used
// here; golang.org/x/sys/unix doesn't expose these as named values.
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503

	uinputMaxNameSize = 80
	busVirtual        = 0x06

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0
)

// uinputSetup mirrors the kernel's struct uinput_setup.
type uinputSetup struct {
	ID struct {
		Bustype uint16
		Vendor  uint16
		Product uint16
		Version uint16
	}
	Name      [uinputMaxNameSize]byte
	FFEffects uint32
}

// inputEvent mirrors the kernel's struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// UinputSink is the virtual keyboard each device worker drives. It
// writes directly to /dev/uinput rather than through a higher-level
// keyboard abstraction, because forwarding an arbitrary non-EV_KEY
// event byte-for-byte (EV_SYN, EV_MSC, ...) needs raw access to the
// device fd that no such abstraction exposes. It is named after the
// physical device it shadows, carrying virtualDeviceMarker so a later
// re-scan of /dev/input never grabs it back as a source.
type UinputSink struct {
	fd int
}

// NewUinputSink opens /dev/uinput and registers a virtual keyboard
// claiming key codes 0-255, which covers every key internal/keycode can
// name, so any rule's To.Key can be emitted regardless of which
// physical key it replaces.
func NewUinputSink(physicalName string) (*UinputSink, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/uinput for %s: %w", physicalName, err)
	}

	s := &UinputSink{fd: fd}
	if err := s.create(physicalName); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func (s *UinputSink) create(physicalName string) error {
	if err := unix.IoctlSetInt(s.fd, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err)
	}
	for code := 0; code < 256; code++ {
		if err := unix.IoctlSetInt(s.fd, uiSetKeyBit, code); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}

	var setup uinputSetup
	setup.ID.Bustype = busVirtual
	setup.ID.Vendor = 0x1
	setup.ID.Product = 0x1
	setup.ID.Version = 1
	copy(setup.Name[:], sinkName(physicalName))

	if err := s.ioctlPtr(uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		return fmt.Errorf("UI_DEV_SETUP: %w", err)
	}
	if err := unix.IoctlSetInt(s.fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	// The kernel creates the device node asynchronously; give udev a
	// moment before anything tries to open it (our own re-scan excludes
	// it by name regardless, but other listeners may not).
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (s *UinputSink) ioctlPtr(req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *UinputSink) write(evType, code uint16, value int32) error {
	var ev inputEvent
	if err := unix.Gettimeofday(&ev.Time); err != nil {
		return err
	}
	ev.Type = evType
	ev.Code = code
	ev.Value = value

	buf := make([]byte, unsafe.Sizeof(ev))
	*(*inputEvent)(unsafe.Pointer(&buf[0])) = ev
	_, err := unix.Write(s.fd, buf)
	return err
}

func (s *UinputSink) sync() error {
	return s.write(evSyn, synReport, 0)
}

// Apply writes every event in batch, in order, then a single
// SYN_REPORT so downstream listeners see the whole batch as one
// atomic frame.
func (s *UinputSink) Apply(batch []keycode.Event) error {
	for _, ev := range batch {
		if err := s.write(evKey, uint16(ev.Key), int32(ev.Type)); err != nil {
			return fmt.Errorf("writing %s: %w", ev.Key, err)
		}
	}
	return s.sync()
}

// Forward writes ev unchanged, with no framing of its own: a
// forwarded EV_SYN is itself the frame marker the physical device
// emitted, and every other family (EV_MSC, ...) rides alongside the
// key events the next forwarded EV_SYN will flush.
func (s *UinputSink) Forward(ev RawEvent) error {
	if err := s.write(ev.Type, ev.Code, ev.Value); err != nil {
		return fmt.Errorf("forwarding event type %d code %d: %w", ev.Type, ev.Code, err)
	}
	return nil
}

func (s *UinputSink) Close() error {
	destroyErr := unix.IoctlSetInt(s.fd, uiDevDestroy, 0)
	closeErr := unix.Close(s.fd)
	if destroyErr != nil {
		return fmt.Errorf("destroying virtual device: %w", destroyErr)
	}
	return closeErr
}

// sinkName derives the uinput device name from the physical device it
// shadows. uinput device names are capped at UINPUT_MAX_NAME_SIZE (80
// bytes including the NUL terminator in the kernel struct), so the
// result is truncated to fit.
func sinkName(physicalName string) string {
	const maxLen = 79
	name := fmt.Sprintf("%s (%s)", virtualDeviceMarker, physicalName)
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name
}
