//go:build linux

package v4l2

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"unsafe"
)

// SysfsRoot is where video4linux devices are listed.
var SysfsRoot = "/sys/class/video4linux"

// QueryDevice opens devicePath and reads its capabilities.
func QueryDevice(devicePath string) (DeviceInfo, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer syscall.Close(fd)

	var c v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return DeviceInfo{}, fmt.Errorf("query capabilities of %s: %w", devicePath, err)
	}

	caps := c.capabilities
	if caps&capDeviceCaps != 0 {
		caps = c.deviceCaps
	}

	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: cstr(c.card[:]),
		Driver:     cstr(c.driver[:]),
		BusInfo:    cstr(c.busInfo[:]),
		Caps:       caps,
	}, nil
}

// FindDevices finds all V4L2 video capture devices on the system.
// Devices that cannot be opened are skipped.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(SysfsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	devices := []DeviceInfo{}
	for _, entry := range entries {
		info, err := QueryDevice(filepath.Join("/dev", entry.Name()))
		if err != nil || !info.IsCapture() {
			continue
		}
		devices = append(devices, info)
	}

	slices.SortFunc(devices, func(a, b DeviceInfo) int {
		if len(a.DevicePath) != len(b.DevicePath) {
			return len(a.DevicePath) - len(b.DevicePath)
		}
		if a.DevicePath < b.DevicePath {
			return -1
		}
		if a.DevicePath > b.DevicePath {
			return 1
		}
		return 0
	})
	return devices, nil
}
