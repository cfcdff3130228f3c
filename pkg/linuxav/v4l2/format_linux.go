//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// GetFormats returns all supported capture pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer syscall.Close(fd)

	var formats []FormatInfo
	for i := uint32(0); ; i++ {
		desc := v4l2Fmtdesc{index: i, typ: bufTypeVideoCapture}
		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: desc.pixelformat,
			FourCC:      FormatFourCC(desc.pixelformat),
			FormatName:  cstr(desc.description[:]),
			Emulated:    desc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// GetResolutions returns the discrete frame sizes for a pixel format.
// Stepwise and continuous devices report only their maximum size.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer syscall.Close(fd)

	var resolutions []Resolution
	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{index: i, pixelFormat: pixelFormat}
		if ioctlErr := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(ioctlErr, syscall.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, ioctlErr)
		}

		if frmsize.typ == frmsizeTypeDiscrete {
			resolutions = append(resolutions, Resolution{Width: frmsize.union[0], Height: frmsize.union[1]})
			continue
		}
		return append(resolutions, Resolution{Width: frmsize.union[1], Height: frmsize.union[4]}), nil
	}

	return resolutions, nil
}

// GetFramerates returns the discrete frame intervals for a format and size.
func GetFramerates(devicePath string, pixelFormat, width, height uint32) ([]Framerate, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer syscall.Close(fd)

	var framerates []Framerate
	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{index: i, pixelFormat: pixelFormat, width: width, height: height}
		if ioctlErr := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) || errors.Is(ioctlErr, syscall.ENOTTY) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, ioctlErr)
		}

		if frmival.typ != frmivalTypeDiscrete {
			// Stepwise: report the fastest supported interval.
			return append(framerates, Framerate{Numerator: frmival.union[0], Denominator: frmival.union[1]}), nil
		}
		framerates = append(framerates, Framerate{Numerator: frmival.union[0], Denominator: frmival.union[1]})
	}

	return framerates, nil
}
