package brokerlink

import (
	"context"
	"errors"
	"sync"

	"github.com/streamguard/streamguard-go/pkg/brokerlink"
)

var (
	// ErrLogClosed is returned when operating on a closed in-memory log.
	ErrLogClosed = errors.New("in-memory log is closed")
	// ErrNegativeStartOffset is returned when a negative start offset is provided.
	ErrNegativeStartOffset = errors.New("start offset cannot be negative")
)

// InMemoryLog implements a topic-partitioned message log entirely in memory.
// Each topic keeps its own message sequence and offset counter starting from
// 0. It backs the tests and examples, serving as both the fetch source and
// the dead-letter destination. It is safe for concurrent use.
type InMemoryLog struct {
	mu              sync.RWMutex
	messagesByTopic map[string][]*brokerlink.RawMessage
	nextOffset      map[string]int64
	closed          bool
}

// NewInMemoryLog creates a new empty in-memory log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		messagesByTopic: make(map[string][]*brokerlink.RawMessage),
		nextOffset:      make(map[string]int64),
	}
}

// Append stores a message on a topic and returns it with its assigned offset.
func (l *InMemoryLog) Append(topic string, partition int32, key, value []byte) (*brokerlink.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLogClosed
	}

	msg := &brokerlink.RawMessage{
		Topic:     topic,
		Partition: partition,
		Offset:    l.nextOffset[topic],
		Key:       key,
		Value:     value,
	}
	l.messagesByTopic[topic] = append(l.messagesByTopic[topic], msg)
	l.nextOffset[topic]++
	return msg, nil
}

// Publish implements brokerlink.DeadLetterPublisher by appending to the
// dead-letter topic. The failure reason travels as the message key so tests
// can assert on it.
func (l *InMemoryLog) Publish(ctx context.Context, topic string, msg *brokerlink.RawMessage, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.Append(topic, msg.Partition, []byte(reason), msg.Value)
	return err
}

// EndOffset returns the next offset that would be assigned on a topic.
func (l *InMemoryLog) EndOffset(topic string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextOffset[topic]
}

// MessagesOn returns a snapshot of all messages appended to a topic.
func (l *InMemoryLog) MessagesOn(topic string) []*brokerlink.RawMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*brokerlink.RawMessage, len(l.messagesByTopic[topic]))
	copy(out, l.messagesByTopic[topic])
	return out
}

// NewFetcher returns a cursor-based Fetcher over one topic starting at
// startOffset. Multiple fetchers over the same log are independent.
func (l *InMemoryLog) NewFetcher(topic string, startOffset int64) (*InMemoryFetcher, error) {
	if startOffset < 0 {
		return nil, ErrNegativeStartOffset
	}
	return &InMemoryFetcher{log: l, topic: topic, cursor: startOffset}, nil
}

// Close implements brokerlink.DeadLetterPublisher. Closing is idempotent and
// clears all topics.
func (l *InMemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.messagesByTopic = make(map[string][]*brokerlink.RawMessage)
	l.nextOffset = make(map[string]int64)
	l.closed = true
	return nil
}

// InMemoryFetcher implements brokerlink.Fetcher over one topic of an
// InMemoryLog. Fetch never blocks; an empty poll returns an empty slice.
type InMemoryFetcher struct {
	log    *InMemoryLog
	topic  string
	cursor int64
}

// Fetch implements brokerlink.Fetcher.
func (f *InMemoryFetcher) Fetch(ctx context.Context, max int) ([]*brokerlink.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max < 1 {
		max = 1
	}

	f.log.mu.RLock()
	defer f.log.mu.RUnlock()

	if f.log.closed {
		return nil, ErrLogClosed
	}

	results := make([]*brokerlink.RawMessage, 0, max)
	for _, msg := range f.log.messagesByTopic[f.topic] {
		if msg.Offset >= f.cursor {
			results = append(results, msg)
			if len(results) >= max {
				break
			}
		}
	}
	if n := len(results); n > 0 {
		f.cursor = results[n-1].Offset + 1
	}
	return results, nil
}

// Cursor returns the next offset this fetcher will read.
func (f *InMemoryFetcher) Cursor() int64 {
	return f.cursor
}

// Close implements brokerlink.Fetcher.
func (f *InMemoryFetcher) Close() error {
	return nil
}

// Verify interface conformance at compile time
var (
	_ brokerlink.Fetcher             = (*InMemoryFetcher)(nil)
	_ brokerlink.DeadLetterPublisher = (*InMemoryLog)(nil)
)
