// Package udev implements the two kernel-level mechanisms the real
// udevd is itself built on — sysfs uevent files and the
// NETLINK_KOBJECT_UEVENT multicast socket — with no Go udev client
// library dependency. It deliberately stays below the udev database
// (no hwdb enrichment, no persistent symlink rules): device matching
// only needs the properties the kernel itself exposes.
package udev

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Properties is the flattened set of KEY=VALUE pairs a device and its
// sysfs ancestors expose, closest device winning ties — the same
// override order real udev uses when it walks a device's parent chain.
type Properties map[string]string

// Matches reports whether every key in want is present in p with an
// equal value — an AND of equalities across a device `if` block.
func (p Properties) Matches(want map[string]string) bool {
	for k, v := range want {
		if got, ok := p[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// ReadProperties derives the sysfs class path for devicePath (e.g.
// "/dev/input/event3" -> "/sys/class/input/event3") and merges the
// uevent property files of that device and every sysfs ancestor up to
// the bus root, closest device taking precedence.
func ReadProperties(devicePath string) (Properties, error) {
	base := filepath.Base(devicePath)
	classPath := filepath.Join("/sys/class/input", base)

	devDir, err := filepath.EvalSymlinks(filepath.Join(classPath, "device"))
	if err != nil {
		return nil, fmt.Errorf("resolving sysfs device for %s: %w", devicePath, err)
	}

	props := make(Properties)

	// Walk from devDir up to the bus root ("/sys/devices/..."),
	// merging each ancestor's uevent file without overwriting a key
	// a closer (already-merged) device already set.
	dir := devDir
	for {
		merged, err := readUevent(filepath.Join(dir, "uevent"))
		if err == nil {
			for k, v := range merged {
				if _, exists := props[k]; !exists {
					props[k] = v
				}
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir || parent == "/" || !strings.HasPrefix(parent, "/sys/devices") {
			break
		}
		dir = parent
	}

	return props, nil
}

func readUevent(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
