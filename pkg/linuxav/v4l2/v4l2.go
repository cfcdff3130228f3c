// Package v4l2 provides pure Go bindings to the parts of the Video4Linux2
// API needed to pick a capture format: device enumeration, capability
// checks and format, frame size and frame interval queries.
//
// This package does not use cgo. All structures used here have the same
// layout on 32 and 64-bit Linux, so one set of ioctl numbers serves every
// architecture.
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    sizes, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	    _ = sizes
//	}
package v4l2

import "errors"

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("v4l2 is not supported on this platform")

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	Driver     string `json:"driver"`
	BusInfo    string `json:"bus_info"`
	Caps       uint32 `json:"caps"`
}

// IsCapture reports whether the device can capture video.
func (d DeviceInfo) IsCapture() bool {
	return d.Caps&capVideoCapture != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32 `json:"pixel_format"`
	FourCC      string `json:"fourcc"`
	FormatName  string `json:"format_name"`
	Emulated    bool   `json:"emulated"`
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Framerate represents a supported frame interval as a fraction.
type Framerate struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Pixel formats the capture pipeline cares about.
const (
	PixFmtYUYV  uint32 = 0x56595559 // 'YUYV'
	PixFmtMJPEG uint32 = 0x47504A4D // 'MJPG'
	PixFmtJPEG  uint32 = 0x4745504A // 'JPEG'
)

// Capability flags.
const (
	capVideoCapture = 0x00000001
	capDeviceCaps   = 0x80000000
)

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}

// HasFormat reports whether formats contains any of the given pixel formats.
func HasFormat(formats []FormatInfo, pixelFormats ...uint32) bool {
	for _, f := range formats {
		for _, want := range pixelFormats {
			if f.PixelFormat == want {
				return true
			}
		}
	}
	return false
}
