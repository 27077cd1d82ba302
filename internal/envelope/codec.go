// Package envelope encodes and decodes the wire envelope of a domain message.
//
// The decoder treats the raw bytes as hostile and enforces a configurable
// ceiling on the decompressed payload size, aborting the moment the ceiling
// would be exceeded instead of decompressing fully and checking afterwards.
// This is what protects a consumer against decompression-bomb payloads that
// claim a small compressed size but expand enormously.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"

	"github.com/streamguard/streamguard-go/pkg/envelope"
)

var (
	// ErrMalformedEnvelope is returned when raw bytes do not parse as a wire
	// envelope or required fields are missing.
	ErrMalformedEnvelope = errors.New("malformed message envelope")
	// ErrCorruptPayload is returned when the compressed payload cannot be
	// decompressed.
	ErrCorruptPayload = errors.New("corrupt compressed payload")
)

// SizeLimitError reports a payload whose decompressed size would exceed the
// configured ceiling. It is always non-fatal to the process and handled the
// same way as a decode error.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("decompressed payload exceeds size limit of %d bytes", e.Limit)
}

// wireEnvelope is the on-wire JSON structure. Payload is base64 in JSON and
// holds the (possibly compressed) message body.
type wireEnvelope struct {
	ThreadID  string    `json:"thread_id"`
	Sequence  uint64    `json:"sequence"`
	Type      string    `json:"type,omitempty"`
	Codec     string    `json:"codec,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes msg into its wire envelope, compressing the payload with
// the given codec.
func Encode(msg *envelope.Message, codec envelope.Codec) ([]byte, error) {
	if msg == nil {
		return nil, ErrMalformedEnvelope
	}
	if !codec.Valid() {
		return nil, fmt.Errorf("unknown payload codec %q", codec)
	}

	body := msg.Payload
	switch codec {
	case envelope.CodecGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(msg.Payload); err != nil {
			return nil, fmt.Errorf("compressing payload: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compressing payload: %w", err)
		}
		body = buf.Bytes()
	case envelope.CodecSnappy:
		body = snappy.Encode(nil, msg.Payload)
	}

	wire := wireEnvelope{
		ThreadID:  msg.ThreadID,
		Sequence:  msg.Sequence,
		Type:      msg.Type,
		Codec:     string(codec),
		Payload:   body,
		Timestamp: msg.Timestamp,
	}
	return json.Marshal(&wire)
}

// DecodeStrict parses raw into a Message, enforcing maxSize as the ceiling on
// the decompressed payload. The limit comes from the consumer's configured
// max message size, not a constant, so operators can tune it per deployment.
//
// Malformed envelope structure returns an error wrapping ErrMalformedEnvelope;
// oversized payloads return a *SizeLimitError; corrupt compressed data returns
// an error wrapping ErrCorruptPayload. All are recoverable per message.
func DecodeStrict(raw []byte, maxSize int64) (*envelope.Message, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max message size must be positive, got %d", maxSize)
	}

	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if wire.ThreadID == "" {
		return nil, fmt.Errorf("%w: missing thread_id", ErrMalformedEnvelope)
	}
	codec := envelope.Codec(wire.Codec)
	if !codec.Valid() {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrMalformedEnvelope, wire.Codec)
	}

	payload, err := decompress(wire.Payload, codec, maxSize)
	if err != nil {
		return nil, err
	}

	return &envelope.Message{
		ThreadID:  wire.ThreadID,
		Sequence:  wire.Sequence,
		Type:      wire.Type,
		Payload:   payload,
		Timestamp: wire.Timestamp,
	}, nil
}

// decompress expands body per codec without ever materializing more than
// maxSize bytes.
func decompress(body []byte, codec envelope.Codec, maxSize int64) ([]byte, error) {
	switch codec {
	case envelope.CodecNone, "":
		if int64(len(body)) > maxSize {
			return nil, &SizeLimitError{Limit: maxSize}
		}
		return body, nil

	case envelope.CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		defer r.Close()

		// Read at most maxSize+1 bytes: the decompressor stops the instant
		// the ceiling would be crossed, regardless of the claimed size.
		out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		if int64(len(out)) > maxSize {
			return nil, &SizeLimitError{Limit: maxSize}
		}
		return out, nil

	case envelope.CodecSnappy:
		// Snappy block format declares its decoded length up front; check it
		// before allocating anything.
		n, err := snappy.DecodedLen(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		if int64(n) > maxSize {
			return nil, &SizeLimitError{Limit: maxSize}
		}
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown codec %q", ErrMalformedEnvelope, codec)
	}
}
