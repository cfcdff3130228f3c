//go:build !linux

package v4l2

// QueryDevice is not supported on this platform.
func QueryDevice(string) (DeviceInfo, error) {
	return DeviceInfo{}, ErrUnsupported
}

// FindDevices returns no devices on this platform.
func FindDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}

// GetFormats is not supported on this platform.
func GetFormats(string) ([]FormatInfo, error) {
	return nil, ErrUnsupported
}

// GetResolutions is not supported on this platform.
func GetResolutions(string, uint32) ([]Resolution, error) {
	return nil, ErrUnsupported
}

// GetFramerates is not supported on this platform.
func GetFramerates(string, uint32, uint32, uint32) ([]Framerate, error) {
	return nil, ErrUnsupported
}
