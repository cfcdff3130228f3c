package v4l2

import "testing"

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		format uint32
		want   string
	}{
		{PixFmtMJPEG, "MJPG"},
		{PixFmtYUYV, "YUYV"},
		{PixFmtJPEG, "JPEG"},
	}
	for _, tt := range tests {
		if got := FormatFourCC(tt.format); got != tt.want {
			t.Errorf("FormatFourCC(%#x) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		rate Framerate
		want float64
	}{
		{Framerate{1, 30}, 30},
		{Framerate{1001, 30000}, 30000.0 / 1001.0},
		{Framerate{0, 30}, 0},
	}
	for _, tt := range tests {
		if got := tt.rate.FPS(); got != tt.want {
			t.Errorf("%+v.FPS() = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestHasFormat(t *testing.T) {
	formats := []FormatInfo{{PixelFormat: PixFmtYUYV}, {PixelFormat: PixFmtMJPEG}}
	if !HasFormat(formats, PixFmtMJPEG, PixFmtJPEG) {
		t.Error("expected MJPEG to be found")
	}
	if HasFormat(formats[:1], PixFmtMJPEG, PixFmtJPEG) {
		t.Error("YUYV-only device should not report MJPEG")
	}
	if HasFormat(nil, PixFmtYUYV) {
		t.Error("empty list should not match")
	}
}

func TestIsCapture(t *testing.T) {
	if !(DeviceInfo{Caps: capVideoCapture}).IsCapture() {
		t.Error("capture flag not recognised")
	}
	if (DeviceInfo{Caps: 0x00000002}).IsCapture() {
		t.Error("output-only device reported as capture")
	}
}
