package nats

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/camfeed/internal/events"
)

// SubjectPrefix is the root of every camfeed subject.
const SubjectPrefix = "camfeed"

// Event subject suffixes.
const (
	KindSessionStarted = "session_started"
	KindSessionEnded   = "session_ended"
	KindSourceState    = "source_state"
	KindConfigReloaded = "config_reloaded"
	KindStreamMetrics  = "stream_metrics"
	KindDeviceChanged  = "device_changed"
)

// ActionRestart asks an instance to restart its capture process.
const ActionRestart = "restart"

// SubjectEvent returns the subject an instance publishes events of kind on.
func SubjectEvent(instance, kind string) string {
	return fmt.Sprintf("%s.%s.events.%s", SubjectPrefix, instance, kind)
}

// SubjectControlRestart returns the subject for restart commands.
func SubjectControlRestart(instance string) string {
	return fmt.Sprintf("%s.%s.control.%s", SubjectPrefix, instance, ActionRestart)
}

// eventKind maps a bus event to its subject suffix.
func eventKind(ev events.Event) string {
	switch ev.Type() {
	case events.TypeSessionStarted:
		return KindSessionStarted
	case events.TypeSessionEnded:
		return KindSessionEnded
	case events.TypeSourceStateChanged:
		return KindSourceState
	case events.TypeConfigReloaded:
		return KindConfigReloaded
	case events.TypeStreamMetrics:
		return KindStreamMetrics
	case events.TypeDeviceChanged:
		return KindDeviceChanged
	default:
		return ""
	}
}

// ControlMessage represents a command sent to a camfeed instance.
type ControlMessage struct {
	Action    string `json:"action"`
	Instance  string `json:"instance"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// ControlReply answers a control command sent as a request.
type ControlReply struct {
	Restarted bool `json:"restarted"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
