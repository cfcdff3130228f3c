//go:build linux

package v4l2

import (
	"errors"
	"os"
	"syscall"
	"testing"
)

func TestCstr(t *testing.T) {
	if got := cstr([]byte{'u', 'v', 'c', 0, 'x'}); got != "uvc" {
		t.Errorf("cstr = %q", got)
	}
	if got := cstr([]byte("full")); got != "full" {
		t.Errorf("cstr without NUL = %q", got)
	}
}

func TestQueryDeviceMissing(t *testing.T) {
	_, err := QueryDevice("/dev/camfeed-test-missing")
	if !errors.Is(err, syscall.ENOENT) {
		t.Errorf("expected ENOENT, got %v", err)
	}
}

func TestQueryDeviceNotVideo(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notvideo")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := QueryDevice(f.Name()); !errors.Is(err, syscall.ENOTTY) {
		t.Errorf("expected ENOTTY for regular file, got %v", err)
	}
}

func TestFindDevicesMissingSysfs(t *testing.T) {
	old := SysfsRoot
	SysfsRoot = "/nonexistent/video4linux"
	defer func() { SysfsRoot = old }()

	devices, err := FindDevices()
	if err != nil {
		t.Fatalf("FindDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected no devices, got %v", devices)
	}
}
