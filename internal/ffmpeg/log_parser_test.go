package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
	}{
		{"simple info", "[info] Stream mapping:", "info", "Stream mapping:"},
		{"simple warning", "[warning] deprecated option", "warning", "deprecated option"},
		{"simple error", "[error] failed to open file", "error", "failed to open file"},
		{"panic maps to fatal", "[panic] out of memory", "fatal", "out of memory"},
		{"verbose maps to debug", "[verbose] probing", "debug", "probing"},
		{
			"component prefix with warning",
			"[swscaler @ 0x7f673c439fc0] [warning] deprecated pixel format used",
			"warning",
			"[swscaler @ 0x7f673c439fc0] deprecated pixel format used",
		},
		{
			"component prefix with error",
			"[video4linux2,v4l2 @ 0x55f4a8c00000] [error] ioctl(VIDIOC_STREAMON): No space left on device",
			"error",
			"[video4linux2,v4l2 @ 0x55f4a8c00000] ioctl(VIDIOC_STREAMON): No space left on device",
		},
		{
			"component prefix without level",
			"[mjpeg @ 0x55f4a8c00000] frame=100 fps=30",
			"info",
			"[mjpeg @ 0x55f4a8c00000] frame=100 fps=30",
		},
		{"no prefix", "frame=100 fps=30 q=5.0 size=1024kB", "info", "frame=100 fps=30 q=5.0 size=1024kB"},
		{"empty line", "", "info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotMsg := ParseLogLevel(tt.input)
			if gotLevel != tt.wantLevel {
				t.Errorf("ParseLogLevel() level = %q, want %q", gotLevel, tt.wantLevel)
			}
			if gotMsg != tt.wantMsg {
				t.Errorf("ParseLogLevel() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}
