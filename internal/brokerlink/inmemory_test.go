package brokerlink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInMemoryLog_AppendAssignsOffsets tests per-topic offset assignment.
func TestInMemoryLog_AppendAssignsOffsets(t *testing.T) {
	log := NewInMemoryLog()

	m1, err := log.Append("events", 0, nil, []byte("a"))
	require.NoError(t, err)
	m2, err := log.Append("events", 0, nil, []byte("b"))
	require.NoError(t, err)
	other, err := log.Append("other", 0, nil, []byte("c"))
	require.NoError(t, err)

	assert.Equal(t, int64(0), m1.Offset)
	assert.Equal(t, int64(1), m2.Offset)
	assert.Equal(t, int64(0), other.Offset, "topics keep independent offset sequences")
	assert.Equal(t, int64(2), log.EndOffset("events"))
}

// TestInMemoryFetcher_CursorAdvances tests fetching in batches.
func TestInMemoryFetcher_CursorAdvances(t *testing.T) {
	log := NewInMemoryLog()
	for i := 0; i < 5; i++ {
		_, err := log.Append("events", 0, nil, []byte{byte(i)})
		require.NoError(t, err)
	}

	fetcher, err := log.NewFetcher("events", 0)
	require.NoError(t, err)

	batch, err := fetcher.Fetch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, int64(0), batch[0].Offset)
	assert.Equal(t, int64(3), fetcher.Cursor())

	batch, err = fetcher.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(4), batch[1].Offset)

	// Empty poll once drained.
	batch, err = fetcher.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

// TestInMemoryFetcher_StartOffset tests resuming from a checkpointed offset.
func TestInMemoryFetcher_StartOffset(t *testing.T) {
	log := NewInMemoryLog()
	for i := 0; i < 4; i++ {
		_, err := log.Append("events", 0, nil, []byte{byte(i)})
		require.NoError(t, err)
	}

	fetcher, err := log.NewFetcher("events", 2)
	require.NoError(t, err)

	batch, err := fetcher.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(2), batch[0].Offset)

	_, err = log.NewFetcher("events", -1)
	assert.ErrorIs(t, err, ErrNegativeStartOffset)
}

// TestInMemoryLog_PublishDeadLetter tests the DeadLetterPublisher side.
func TestInMemoryLog_PublishDeadLetter(t *testing.T) {
	log := NewInMemoryLog()
	raw, err := log.Append("events", 1, []byte("k"), []byte("broken"))
	require.NoError(t, err)

	require.NoError(t, log.Publish(context.Background(), "events.dlq", raw, "decode failed"))

	dead := log.MessagesOn("events.dlq")
	require.Len(t, dead, 1)
	assert.Equal(t, []byte("decode failed"), dead[0].Key)
	assert.Equal(t, []byte("broken"), dead[0].Value)
}

// TestInMemoryLog_Closed tests operations after Close.
func TestInMemoryLog_Closed(t *testing.T) {
	log := NewInMemoryLog()
	fetcher, err := log.NewFetcher("events", 0)
	require.NoError(t, err)

	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "close is idempotent")

	_, err = log.Append("events", 0, nil, []byte("x"))
	assert.ErrorIs(t, err, ErrLogClosed)
	_, err = fetcher.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLogClosed)
}

// TestInMemoryFetcher_ContextCancelled tests ctx handling.
func TestInMemoryFetcher_ContextCancelled(t *testing.T) {
	log := NewInMemoryLog()
	fetcher, err := log.NewFetcher("events", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
