package delivery

import "context"

// MaxMessageLength is the hard per-send character limit. Longer texts are
// split before they reach a sink.
const MaxMessageLength = 4096

// Sink sends one chunk of rendered text to a destination. Implementations
// must treat each call independently; retry policy lives in the Coordinator.
type Sink interface {
	Name() string
	Send(ctx context.Context, destination, text string) error
}
