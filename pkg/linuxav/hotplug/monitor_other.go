//go:build !linux

package hotplug

import "context"

// Monitor is unavailable on this platform.
type Monitor struct{}

// NewMonitor always fails with ErrUnsupported.
func NewMonitor(...string) (*Monitor, error) {
	return nil, ErrUnsupported
}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run closes events and returns ErrUnsupported.
func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return ErrUnsupported
}
