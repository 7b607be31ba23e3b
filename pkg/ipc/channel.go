// Package ipc is the command/event channel to the local audio runtime
// bridge. On-device providers invoke commands over it and receive pushed
// events (model download progress) from it.
package ipc

import (
	"context"
	"encoding/json"
)

// Unsubscribe releases an event subscription. Safe to call more than once.
type Unsubscribe = func()

// Channel is the uniform shape of the runtime bridge. Implementations must
// allow concurrent Invoke calls and deliver each pushed event to every
// registered listener.
type Channel interface {
	// Invoke sends a command and blocks until the runtime responds or ctx
	// is done. A runtime-reported failure comes back as an error.
	Invoke(ctx context.Context, command string, args any) (json.RawMessage, error)

	// Listen registers a handler for a pushed event stream.
	Listen(event string, handler func(payload json.RawMessage)) (Unsubscribe, error)
}
