package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/camfeed/internal/logging"
)

// ControlPublisher sends control commands to camfeed instances.
type ControlPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewControlPublisher connects a publisher for control commands.
func NewControlPublisher(url string, logger *slog.Logger) (*ControlPublisher, error) {
	if logger == nil {
		logger = logging.GetLogger("nats")
	}

	conn, err := nats.Connect(url,
		nats.Name("camfeed-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPublisher{
		conn:   conn,
		logger: logger.With("component", "nats-control"),
	}, nil
}

// Restart asks instance to restart its capture process and waits up to
// timeout for the answer. It reports whether capture was restarted.
func (p *ControlPublisher) Restart(instance, reason string, timeout time.Duration) (bool, error) {
	msg := ControlMessage{
		Action:    ActionRestart,
		Instance:  instance,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
	}

	data, err := msg.Marshal()
	if err != nil {
		return false, err
	}

	reply, err := p.conn.Request(SubjectControlRestart(instance), data, timeout)
	if err != nil {
		return false, fmt.Errorf("restart %s: %w", instance, err)
	}

	var resp ControlReply
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return false, fmt.Errorf("restart %s: bad reply: %w", instance, err)
	}

	p.logger.Info("Sent restart command", "instance", instance, "reason", reason, "restarted", resp.Restarted)
	return resp.Restarted, nil
}

// Close closes the control publisher connection.
func (p *ControlPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
