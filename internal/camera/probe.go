package camera

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/smazurov/camfeed/internal/ffmpeg"
	"github.com/smazurov/camfeed/pkg/linuxav/v4l2"
)

// ProbeFunc inspects a device and returns the ffmpeg input format to use.
type ProbeFunc func(device string) (inputFormat string, err error)

// ProbeDevice checks that device exists and can capture video. It prefers
// compressed MJPEG input and falls back to YUYV, or to the driver default
// when neither is advertised.
func ProbeDevice(device string) (string, error) {
	if _, err := os.Stat(device); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
		}
		return "", fmt.Errorf("stat %s: %w", device, err)
	}

	info, err := v4l2.QueryDevice(device)
	if err != nil {
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
			return "", fmt.Errorf("%w: %s", ErrNotCaptureDevice, device)
		}
		return "", err
	}
	if !info.IsCapture() {
		return "", fmt.Errorf("%w: %s (%s)", ErrNotCaptureDevice, device, info.DeviceName)
	}

	formats, err := v4l2.GetFormats(device)
	if err != nil {
		return "", err
	}

	switch {
	case v4l2.HasFormat(formats, v4l2.PixFmtMJPEG, v4l2.PixFmtJPEG):
		return ffmpeg.InputFormatMJPEG, nil
	case v4l2.HasFormat(formats, v4l2.PixFmtYUYV):
		return ffmpeg.InputFormatYUYV, nil
	default:
		return "", nil
	}
}
