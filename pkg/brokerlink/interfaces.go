package brokerlink

import (
	"context"
	"io"

	"github.com/streamguard/streamguard-go/pkg/envelope"
)

// RawMessage is one undecoded message as fetched from the broker.
type RawMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Fetcher is the poll primitive the consumer loop reads from. One Fetcher
// serves exactly one partition; ordering guarantees hold only because the
// loop processes what Fetch returns sequentially.
type Fetcher interface {
	io.Closer

	// Fetch returns up to max raw messages in partition order. It may return
	// an empty slice when no messages are available; it must not block past
	// ctx cancellation.
	Fetch(ctx context.Context, max int) ([]*RawMessage, error)
}

// DeadLetterPublisher republishes messages that failed decode or strict
// validation so they do not block the main stream.
type DeadLetterPublisher interface {
	io.Closer

	// Publish sends the raw message to the dead-letter topic. Headers
	// describing the origin and failure reason travel with it.
	Publish(ctx context.Context, topic string, msg *RawMessage, reason string) error
}

// DeliverySink receives messages that decoded cleanly and passed sequence
// validation.
type DeliverySink interface {
	// Deliver hands one validated message downstream. The raw form is
	// included for sinks that need broker coordinates.
	Deliver(ctx context.Context, msg *envelope.Message, raw *RawMessage) error
}
