package nats

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/logging"
)

// RestartFunc handles a restart command. It reports whether capture was
// running and got restarted.
type RestartFunc func(reason string) bool

// Relay publishes bus events to NATS and forwards control commands for its
// instance.
type Relay struct {
	url       string
	instance  string
	eventBus  *events.Bus
	onRestart RestartFunc
	logger    *slog.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	sub    *nats.Subscription
	unsubs []func()
}

// NewRelay creates a relay for instance. onRestart may be nil.
func NewRelay(url, instance string, eventBus *events.Bus, onRestart RestartFunc, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = logging.GetLogger("nats")
	}

	return &Relay{
		url:       url,
		instance:  instance,
		eventBus:  eventBus,
		onRestart: onRestart,
		logger:    logger.With("component", "nats-relay", "instance", instance),
	}
}

// Start connects to NATS, subscribes to control commands and begins
// forwarding events.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := nats.Connect(r.url,
		nats.Name("camfeed-"+r.instance),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				r.logger.Warn("NATS relay disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			r.logger.Info("NATS relay reconnected")
		}),
	)
	if err != nil {
		return err
	}
	r.conn = conn

	if r.onRestart != nil {
		sub, err := conn.Subscribe(SubjectControlRestart(r.instance), r.handleRestart)
		if err != nil {
			r.cleanup()
			return err
		}
		r.sub = sub
	}

	r.unsubs = []func(){
		r.eventBus.Subscribe(func(e events.SessionStartedEvent) { r.forward(e) }),
		r.eventBus.Subscribe(func(e events.SessionEndedEvent) { r.forward(e) }),
		r.eventBus.Subscribe(func(e events.SourceStateChangedEvent) { r.forward(e) }),
		r.eventBus.Subscribe(func(e events.ConfigReloadedEvent) { r.forward(e) }),
		r.eventBus.Subscribe(func(e events.StreamMetricsEvent) { r.forward(e) }),
		r.eventBus.Subscribe(func(e events.DeviceChangedEvent) { r.forward(e) }),
	}

	r.logger.Info("NATS relay connected", "url", r.url)
	return nil
}

func (r *Relay) forward(ev events.Event) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return
	}

	kind := eventKind(ev)
	if kind == "" {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("Failed to marshal event", "kind", kind, "error", err)
		return
	}
	if err := conn.Publish(SubjectEvent(r.instance, kind), data); err != nil {
		r.logger.Warn("Failed to publish event", "kind", kind, "error", err)
	}
}

func (r *Relay) handleRestart(msg *nats.Msg) {
	ctrl, err := UnmarshalControl(msg.Data)
	if err != nil {
		r.logger.Warn("Failed to unmarshal control message", "error", err, "subject", msg.Subject)
		return
	}
	if ctrl.Action != ActionRestart {
		r.logger.Warn("Unknown control action", "action", ctrl.Action)
		return
	}

	reason := ctrl.Reason
	if reason == "" {
		reason = "nats"
	}
	restarted := r.onRestart(reason)
	r.logger.Info("Received restart command", "reason", reason, "restarted", restarted)

	if msg.Reply != "" {
		data, _ := json.Marshal(ControlReply{Restarted: restarted})
		_ = msg.Respond(data)
	}
}

// cleanup unsubscribes and closes the connection. Caller holds r.mu.
func (r *Relay) cleanup() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil

	if r.sub != nil {
		_ = r.sub.Unsubscribe()
		r.sub = nil
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Stop closes the relay connection.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cleanup()
	r.logger.Info("NATS relay stopped")
}

// IsConnected returns true if the relay is connected to NATS.
func (r *Relay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil && r.conn.IsConnected()
}
