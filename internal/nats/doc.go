// Package nats relays camfeed events to NATS and accepts control commands
// from it.
//
// # Architecture
//
//   - Server: optional embedded NATS server so dashboards and scripts can
//     subscribe without running a separate broker
//   - Relay: subscribes to the in-process event bus and publishes each event
//     as JSON; listens for control commands for this instance
//   - ControlPublisher: client used by `camfeed restart` to send commands
//
// # Subject Hierarchy
//
//	camfeed.{instance}.events.session_started
//	camfeed.{instance}.events.session_ended
//	camfeed.{instance}.events.source_state
//	camfeed.{instance}.events.config_reloaded
//	camfeed.{instance}.events.stream_metrics
//	camfeed.{instance}.events.device_changed
//	camfeed.{instance}.control.restart        # restart capture (→ camfeed)
//
// Messaging is fire-and-forget core NATS, no JetStream. When NATS is
// unreachable the relay logs a warning and the stream keeps running.
//
// # Debugging with nats CLI
//
// Monitor everything an instance publishes:
//
//	nats sub "camfeed.default.events.>"
//
// Restart capture on an instance:
//
//	nats pub "camfeed.default.control.restart" '{"action":"restart","instance":"default","reason":"manual"}'
package nats
