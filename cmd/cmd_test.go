package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/nats"
	"github.com/smazurov/camfeed/internal/version"
	"github.com/smazurov/camfeed/pkg/linuxav/v4l2"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := CreateVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != version.String() {
		t.Errorf("output = %q, want %q", out.String(), version.String())
	}
}

func TestWriteDeviceReports(t *testing.T) {
	var out bytes.Buffer
	writeDeviceReports(&out, nil)
	if !strings.Contains(out.String(), "No capture devices found") {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	writeDeviceReports(&out, []deviceReport{{
		DeviceInfo: v4l2.DeviceInfo{DevicePath: "/dev/video0", DeviceName: "USB Camera", Driver: "uvcvideo", BusInfo: "usb-1"},
		Formats: []formatReport{{
			FormatInfo: v4l2.FormatInfo{FourCC: "MJPG", FormatName: "Motion-JPEG"},
			Modes:      []modeReport{{Width: 640, Height: 480, FPS: []float64{30, 15}}},
		}},
	}})
	for _, want := range []string{"/dev/video0: USB Camera (uvcvideo, usb-1)", "MJPG Motion-JPEG", "640x480 30fps 15fps"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRestartCmd(t *testing.T) {
	server := nats.NewServer(nats.ServerOptions{Port: -1})
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	defer server.Stop()

	bus := events.New()
	defer func() { _ = bus.Close() }()
	relay := nats.NewRelay(server.ClientURL(), "lab", bus, func(string) bool { return true }, nil)
	if err := relay.Start(); err != nil {
		t.Fatal(err)
	}
	defer relay.Stop()

	var out bytes.Buffer
	cmd := CreateRestartCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--nats-url", server.ClientURL(), "--instance", "lab", "--timeout", "2s"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "lab: capture restarted") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRestartCmdRequiresURL(t *testing.T) {
	cmd := CreateRestartCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--nats-url", ""})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without a NATS URL")
	}
}
