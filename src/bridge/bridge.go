package bridge

import "github.com/schedulr/realtime/src/bus"

// Bridge relays bus events between dashboard instances so that a chat message
// processed by one process updates room badges served by another.
type Bridge interface {
	// Publish sends a bus event to all other instances.
	Publish(topic bus.Topic, payload any) error

	// Start begins listening for events from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// LocalPublisher is implemented by the bus to receive relayed events.
type LocalPublisher interface {
	PublishLocal(topic bus.Topic, payload any)
}
