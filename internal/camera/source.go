// Package camera produces JPEG frames from a capture device and hands
// them to a publisher.
package camera

import (
	"context"
	"errors"
)

var (
	// ErrStalled is returned by Run when no frame arrives within the stall timeout.
	ErrStalled = errors.New("capture stalled")
	// ErrProducerExited is returned by Run when the capture process exits on its own.
	ErrProducerExited = errors.New("capture process exited")
	// ErrDeviceNotFound is returned when the configured device does not exist.
	ErrDeviceNotFound = errors.New("capture device not found")
	// ErrNotCaptureDevice is returned when the device cannot capture video.
	ErrNotCaptureDevice = errors.New("not a video capture device")
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid camera settings")
)

// Publisher receives whole JPEG frames. The slice is owned by the
// publisher after the call.
type Publisher interface {
	Publish(frame []byte) uint64
}

// Source produces frames until ctx is cancelled or capture fails.
// Run returns nil on cancellation.
type Source interface {
	Run(ctx context.Context, pub Publisher) error
	Name() string
}
