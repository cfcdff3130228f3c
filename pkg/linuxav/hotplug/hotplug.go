// Package hotplug reports kernel device add and remove events read from the
// netlink uevent socket, without cgo or libudev.
package hotplug

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

// ErrUnsupported is returned on platforms without netlink uevents.
var ErrUnsupported = errors.New("hotplug is not supported on this platform")

// Actions the capture pipeline reacts to.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux is the subsystem of /dev/video* nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevName   string
	Env       map[string]string
}

// Node returns the /dev path of the event's device, or "" when the event
// carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// Matches reports whether the event concerns the device node at devicePath.
// Symlinks such as /dev/v4l/by-id/... only match through their target.
func (e Event) Matches(devicePath string) bool {
	node := e.Node()
	return node != "" && path.Clean(node) == path.Clean(devicePath)
}

// ParseUEvent parses a kernel uevent datagram of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". Messages rebroadcast by udevd carry a
// binary "libudev" header and are rejected.
func ParseUEvent(data []byte) (Event, bool) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return Event{}, false
	}

	fields := bytes.Split(data, []byte{0})
	action, kobj, ok := strings.Cut(string(fields[0]), "@")
	if !ok || action == "" {
		return Event{}, false
	}

	ev := Event{Action: action, KObj: kobj, Env: make(map[string]string, len(fields)-1)}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev, true
}
