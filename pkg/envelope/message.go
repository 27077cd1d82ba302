// Package envelope defines the domain message carried on the broker and the
// codec identifiers its payload may be compressed with.
package envelope

import "time"

// Codec identifies the compression applied to a message payload on the wire.
type Codec string

const (
	// CodecNone leaves the payload uncompressed.
	CodecNone Codec = "none"
	// CodecGzip compresses the payload with gzip.
	CodecGzip Codec = "gzip"
	// CodecSnappy compresses the payload with snappy block encoding.
	CodecSnappy Codec = "snappy"
)

// Valid reports whether the codec is one the decoder understands. The empty
// string is accepted as CodecNone for producers that omit the field.
func (c Codec) Valid() bool {
	switch c {
	case CodecNone, CodecGzip, CodecSnappy, "":
		return true
	default:
		return false
	}
}

// Message is a single decoded domain message.
//
// ThreadID names the logical ordered stream the message belongs to; Sequence
// is the producer-assigned, per-thread monotonic counter. A Sequence of 0
// marks a legacy producer that predates sequencing.
type Message struct {
	// ThreadID identifies the logical ordered stream
	ThreadID string

	// Sequence is the per-thread monotonic counter assigned by the producer
	Sequence uint64

	// Type is an optional application-level message type
	Type string

	// Payload is the raw message body (immutable after creation)
	Payload []byte

	// Timestamp is when the producer created the message
	Timestamp time.Time
}

// NewMessage creates a new Message. The payload is copied to ensure
// immutability.
func NewMessage(threadID string, seq uint64, payload []byte) *Message {
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	return &Message{
		ThreadID:  threadID,
		Sequence:  seq,
		Payload:   payloadCopy,
		Timestamp: time.Now().UTC(),
	}
}

// WithType returns a copy of the message with the application type set.
func (m *Message) WithType(msgType string) *Message {
	out := *m
	out.Type = msgType
	return &out
}
