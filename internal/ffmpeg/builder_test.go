package ffmpeg

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestBuildArgsDevice(t *testing.T) {
	args := BuildArgs(&Params{
		DevicePath:  "/dev/video0",
		InputFormat: InputFormatMJPEG,
		Width:       640,
		Height:      480,
		FPS:         30,
		Saturation:  "1.5",
		Quality:     5,
	})

	want := []string{
		"ffmpeg", "-hide_banner", "-nostdin", "-nostats", "-loglevel", "level+warning",
		"-f", "v4l2", "-input_format", "mjpeg", "-video_size", "640x480", "-framerate", "30",
		"-i", "/dev/video0",
		"-vf", "eq=saturation=1.5",
		"-an", "-c:v", "mjpeg", "-q:v", "5",
		"-flush_packets", "1", "-f", "mjpeg", "pipe:1",
	}
	if !slices.Equal(args, want) {
		t.Errorf("BuildArgs =\n%v\nwant\n%v", args, want)
	}
}

func TestBuildArgsTestSource(t *testing.T) {
	args := BuildArgs(&Params{
		Binary:       "/usr/local/bin/ffmpeg",
		IsTestSource: true,
		Width:        320,
		Height:       240,
		FPS:          10,
		LogLevel:     "info",
	})

	if args[0] != "/usr/local/bin/ffmpeg" {
		t.Errorf("binary = %q", args[0])
	}
	joined := strings.Join(args, " ")
	for _, part := range []string{
		"-loglevel level+info",
		"-re -f lavfi -i testsrc2=size=320x240:rate=10",
		"-f mjpeg pipe:1",
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("args missing %q: %s", part, joined)
		}
	}
	for _, absent := range []string{"v4l2", "-vf", "-q:v"} {
		if strings.Contains(joined, absent) {
			t.Errorf("args should not contain %q: %s", absent, joined)
		}
	}
}

func TestBuildArgsTestSourceDefaults(t *testing.T) {
	joined := strings.Join(BuildArgs(&Params{IsTestSource: true}), " ")
	if !strings.Contains(joined, "testsrc2=size=640x480:rate=30") {
		t.Errorf("unexpected test source defaults: %s", joined)
	}
}

func TestBuildCommandQuotesArguments(t *testing.T) {
	cmd := BuildCommand(&Params{DevicePath: "/dev/my camera"})
	if !strings.Contains(cmd, `-i "/dev/my camera"`) {
		t.Errorf("BuildCommand = %s", cmd)
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		input   string
		w, h    int
		wantErr bool
	}{
		{"640x480", 640, 480, false},
		{" 1920X1080 ", 1920, 1080, false},
		{"640", 0, 0, true},
		{"0x480", 0, 0, true},
		{"axb", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, h, err := ParseResolution(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResolution) {
					t.Errorf("expected ErrInvalidResolution, got %v", err)
				}
				return
			}
			if err != nil || w != tt.w || h != tt.h {
				t.Errorf("ParseResolution(%q) = %d, %d, %v", tt.input, w, h, err)
			}
		})
	}
}
