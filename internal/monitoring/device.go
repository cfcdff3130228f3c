// Package monitoring watches the capture device for hotplug events.
package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/logging"
	"github.com/smazurov/camfeed/pkg/linuxav/hotplug"
)

// DefaultSettleDelay gives the kernel time to finish enumerating a newly
// added node before capture reopens it.
const DefaultSettleDelay = time.Second

// EventSource delivers hotplug events until ctx is done.
type EventSource interface {
	Run(ctx context.Context, events chan<- hotplug.Event) error
	Close() error
}

// EventPublisher is the part of the event bus the monitor needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// DeviceMonitor publishes add and remove events for one device node. It
// calls OnRemove when the node goes away and OnReconnect when it comes back.
type DeviceMonitor struct {
	// Device returns the node to watch. It is called per event so that
	// reconfiguring the camera retargets the monitor.
	Device      func() string
	OnReconnect func(device string)
	OnRemove    func(device string)
	Publisher   EventPublisher
	SettleDelay time.Duration

	source EventSource
	logger *slog.Logger
}

// NewDeviceMonitor opens a netlink monitor for video4linux events.
func NewDeviceMonitor(device func() string, onReconnect func(string), publisher EventPublisher) (*DeviceMonitor, error) {
	src, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return nil, err
	}
	return newDeviceMonitor(src, device, onReconnect, publisher), nil
}

func newDeviceMonitor(src EventSource, device func() string, onReconnect func(string), publisher EventPublisher) *DeviceMonitor {
	return &DeviceMonitor{
		Device:      device,
		OnReconnect: onReconnect,
		Publisher:   publisher,
		SettleDelay: DefaultSettleDelay,
		source:      src,
		logger:      logging.GetLogger("camera").With("component", "hotplug"),
	}
}

// Run handles events until ctx is done and closes the underlying source.
func (m *DeviceMonitor) Run(ctx context.Context) error {
	defer func() { _ = m.source.Close() }()

	ch := make(chan hotplug.Event, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- m.source.Run(ctx, ch) }()

	m.logger.Debug("Hotplug monitoring started", "device", m.Device())
	for ev := range ch {
		m.handle(ctx, ev)
	}

	err := <-errCh
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (m *DeviceMonitor) handle(ctx context.Context, ev hotplug.Event) {
	device := m.Device()
	if device == "" || !ev.Matches(device) {
		return
	}

	switch ev.Action {
	case hotplug.ActionRemove:
		m.logger.Warn("Capture device removed", "device", device)
		m.publish("removed", device)
		if m.OnRemove != nil {
			m.OnRemove(device)
		}
	case hotplug.ActionAdd:
		m.logger.Info("Capture device added", "device", device)
		m.publish("added", device)
		if m.SettleDelay > 0 {
			timer := time.NewTimer(m.SettleDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
		if m.OnReconnect != nil {
			m.OnReconnect(device)
		}
	}
}

func (m *DeviceMonitor) publish(action, device string) {
	if m.Publisher == nil {
		return
	}
	m.Publisher.Publish(events.DeviceChangedEvent{
		Action:    action,
		Device:    device,
		Timestamp: events.Now(),
	})
}
