package port

import "context"

// Event is one room-scoped payload forwarded between server processes.
// Origin identifies the publishing node so subscribers can skip their own
// events; Payload is the already-encoded wire frame.
type Event struct {
	Room    string `json:"room"`
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

// Relay is the cross-process broadcast fan-out. Room membership tables are
// process-local, so in a multi-process deployment each node publishes every
// room broadcast here and applies events received from peers to its own
// registry. A nil relay means single-process operation.
type Relay interface {
	// Publish forwards the event to peer nodes. Best-effort.
	Publish(ctx context.Context, ev Event) error

	// Subscribe delivers peer events to fn until the context is canceled.
	// Events published by this node's own origin are filtered out.
	Subscribe(ctx context.Context, fn func(ev Event)) error

	// Close releases the underlying connections.
	Close() error
}
