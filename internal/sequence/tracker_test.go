package sequence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamguard/streamguard-go/pkg/sequence"
)

// TestTracker_FirstMessageEstablishesBaseline tests that the first message of
// a never-seen thread is accepted regardless of its sequence number.
func TestTracker_FirstMessageEstablishesBaseline(t *testing.T) {
	tests := []struct {
		name string
		seq  uint64
	}{
		{name: "sequence one", seq: 1},
		{name: "mid-stream restart", seq: 4711},
		{name: "large sequence", seq: 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(sequence.PolicyWarnAndContinue)

			err := tracker.Validate("thread-1", tt.seq)
			require.NoError(t, err)

			next, ok := tracker.ExpectedForThread("thread-1")
			require.True(t, ok)
			assert.Equal(t, tt.seq+1, next)
		})
	}
}

// TestTracker_InOrderSequenceAdvances tests that consecutive sequences succeed
// and advance the expected value by exactly one each time.
func TestTracker_InOrderSequenceAdvances(t *testing.T) {
	tracker := NewTracker(sequence.PolicyWarnAndContinue)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, tracker.Validate("t", seq))
		next, ok := tracker.ExpectedForThread("t")
		require.True(t, ok)
		assert.Equal(t, seq+1, next)
	}
}

// TestTracker_GapDetection tests gap reporting and the gap_size invariant.
func TestTracker_GapDetection(t *testing.T) {
	tracker := NewTracker(sequence.PolicyWarnAndContinue)
	require.NoError(t, tracker.Validate("t", 1))
	require.NoError(t, tracker.Validate("t", 2))

	err := tracker.Validate("t", 5)
	require.Error(t, err)

	var gap *sequence.GapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, "t", gap.ThreadID)
	assert.Equal(t, uint64(3), gap.Expected)
	assert.Equal(t, uint64(5), gap.Received)
	assert.Equal(t, uint64(2), gap.GapSize)
	assert.Equal(t, gap.Received-gap.Expected, gap.GapSize)
}

// TestTracker_DuplicateDetection tests that an exact repeat of the previous
// message is reported as a duplicate and leaves state unchanged.
func TestTracker_DuplicateDetection(t *testing.T) {
	tracker := NewTracker(sequence.PolicyWarnAndContinue)
	require.NoError(t, tracker.Validate("t", 1))
	require.NoError(t, tracker.Validate("t", 2))

	err := tracker.Validate("t", 2)
	require.Error(t, err)

	var dup *sequence.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, uint64(2), dup.Sequence)
	assert.Equal(t, uint64(3), dup.Expected)

	next, ok := tracker.ExpectedForThread("t")
	require.True(t, ok)
	assert.Equal(t, uint64(3), next, "duplicate must not advance state")
}

// TestTracker_ReorderedDetection tests that a message older than the previous
// one is reported as reordered, not as a duplicate.
func TestTracker_ReorderedDetection(t *testing.T) {
	tracker := NewTracker(sequence.PolicyWarnAndContinue)
	require.NoError(t, tracker.Validate("t", 1))
	require.NoError(t, tracker.Validate("t", 2))
	require.NoError(t, tracker.Validate("t", 3))

	err := tracker.Validate("t", 1)
	require.Error(t, err)

	var reordered *sequence.ReorderedError
	require.True(t, errors.As(err, &reordered))
	assert.Equal(t, uint64(1), reordered.Sequence)
	assert.Equal(t, uint64(4), reordered.Expected)

	next, ok := tracker.ExpectedForThread("t")
	require.True(t, ok)
	assert.Equal(t, uint64(4), next, "reordered must not advance state")
}

// TestTracker_ContinuePolicyResynchronizes tests that Continue and
// WarnAndContinue resync the expected value to received+1 after a gap.
func TestTracker_ContinuePolicyResynchronizes(t *testing.T) {
	for _, policy := range []sequence.Policy{sequence.PolicyContinue, sequence.PolicyWarnAndContinue} {
		t.Run(policy.String(), func(t *testing.T) {
			tracker := NewTracker(policy)
			require.NoError(t, tracker.Validate("t", 1))

			err := tracker.Validate("t", 10)
			var gap *sequence.GapError
			require.True(t, errors.As(err, &gap))

			next, ok := tracker.ExpectedForThread("t")
			require.True(t, ok)
			assert.Equal(t, uint64(11), next)
			assert.False(t, tracker.IsHalted("t"))

			// The stream continues from the resynchronized position.
			assert.NoError(t, tracker.Validate("t", 11))
		})
	}
}

// TestTracker_HaltPolicy tests that a gap under PolicyHalt freezes the thread
// until ResetHalted is called.
func TestTracker_HaltPolicy(t *testing.T) {
	tracker := NewTracker(sequence.PolicyHalt)
	require.NoError(t, tracker.Validate("t", 1))
	require.NoError(t, tracker.Validate("t", 2))

	err := tracker.Validate("t", 7)
	var gap *sequence.GapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, uint64(3), gap.Expected)

	// Expected value stays at its pre-gap position and the thread is halted.
	next, ok := tracker.ExpectedForThread("t")
	require.True(t, ok)
	assert.Equal(t, uint64(3), next)
	assert.True(t, tracker.IsHalted("t"))
	assert.Equal(t, []string{"t"}, tracker.HaltedThreads())

	// While halted, nothing is accepted; every call re-evaluates against the
	// unchanged expected value, even the sequence that was expected.
	for _, seq := range []uint64{8, 3, 1} {
		err := tracker.Validate("t", seq)
		require.True(t, errors.As(err, &gap), "seq %d must fail while halted", seq)
		assert.Equal(t, uint64(3), gap.Expected)
		assert.Equal(t, seq, gap.Received)
	}
	next, _ = tracker.ExpectedForThread("t")
	assert.Equal(t, uint64(3), next)

	// Other threads are unaffected.
	assert.NoError(t, tracker.Validate("other", 1))

	tracker.ResetHalted("t")
	assert.False(t, tracker.IsHalted("t"))

	// ResetHalted keeps the expected value: the missing message can now arrive.
	assert.NoError(t, tracker.Validate("t", 3))
}

// TestTracker_Reset tests that Reset clears one thread entirely.
func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker(sequence.PolicyHalt)
	require.NoError(t, tracker.Validate("t", 1))
	_ = tracker.Validate("t", 9) // halt the thread

	tracker.Reset("t")
	assert.False(t, tracker.IsHalted("t"))
	_, ok := tracker.ExpectedForThread("t")
	assert.False(t, ok)

	// Next message is a fresh baseline.
	assert.NoError(t, tracker.Validate("t", 42))
	next, _ := tracker.ExpectedForThread("t")
	assert.Equal(t, uint64(43), next)
}

// TestTracker_Clear tests that Clear drops all state.
func TestTracker_Clear(t *testing.T) {
	tracker := NewTracker(sequence.PolicyHalt)
	require.NoError(t, tracker.Validate("a", 1))
	require.NoError(t, tracker.Validate("b", 1))
	_ = tracker.Validate("a", 5)

	tracker.Clear()
	assert.Equal(t, 0, tracker.TrackedCount())
	assert.Empty(t, tracker.HaltedThreads())
	assert.NoError(t, tracker.Validate("a", 99))
}

// TestTracker_PrunedThreadRebaselines tests that a thread remembered as pruned
// is treated as never seen (no false gap) and leaves the pruned set.
func TestTracker_PrunedThreadRebaselines(t *testing.T) {
	tracker := NewTracker(sequence.PolicyHalt)
	require.NoError(t, tracker.Validate("t", 1))
	require.NoError(t, tracker.Validate("t", 2))

	tracker.markPruned("t")
	assert.Equal(t, 1, tracker.PrunedCount())

	// Any sequence succeeds unconditionally after pruning.
	assert.NoError(t, tracker.Validate("t", 77))
	assert.Equal(t, 0, tracker.PrunedCount(), "reappearing thread leaves the pruned set")
	assert.False(t, tracker.IsHalted("t"))

	next, ok := tracker.ExpectedForThread("t")
	require.True(t, ok)
	assert.Equal(t, uint64(78), next)
}

// TestTracker_EvictionBoundsTrackedThreads tests the capacity invariants under
// many distinct threads.
func TestTracker_EvictionBoundsTrackedThreads(t *testing.T) {
	const (
		maxTracked = 100
		maxPruned  = 50
		batch      = 10
	)
	tracker := NewTrackerWithCapacity(sequence.PolicyWarnAndContinue, maxTracked, maxPruned, batch)

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("thread-%04d", i)
		require.NoError(t, tracker.Validate(id, 1))
		assert.LessOrEqual(t, tracker.TrackedCount(), maxTracked)
		assert.LessOrEqual(t, tracker.PrunedCount(), maxPruned+batch)
	}

	// The most recent threads are still tracked and validate in order.
	require.NoError(t, tracker.Validate("thread-0999", 2))

	// An evicted-and-remembered thread rebaselines without a gap even though
	// its old expected value was 2.
	tracker2 := NewTrackerWithCapacity(sequence.PolicyHalt, 10, 50, 5)
	for i := 0; i < 20; i++ {
		require.NoError(t, tracker2.Validate(fmt.Sprintf("t-%02d", i), 1))
	}
	assert.NoError(t, tracker2.Validate("t-00", 500), "pruned thread must rebaseline, not gap")
	assert.False(t, tracker2.IsHalted("t-00"))
}

// TestTracker_EvictionDropsOldestPruned tests that the pruned set itself stays
// bounded by dropping its oldest members.
func TestTracker_EvictionDropsOldestPruned(t *testing.T) {
	tracker := NewTrackerWithCapacity(sequence.PolicyWarnAndContinue, 5, 3, 2)

	for i := 0; i < 50; i++ {
		require.NoError(t, tracker.Validate(fmt.Sprintf("t-%02d", i), 1))
	}
	assert.LessOrEqual(t, tracker.TrackedCount(), 5)
	assert.LessOrEqual(t, tracker.PrunedCount(), 3+2)
}

// TestTracker_ResetCyclesBoundOrderQueue tests that repeated reset/revalidate
// cycles on the same threads do not grow the insertion-order bookkeeping
// without bound; stale entries must be compacted away.
func TestTracker_ResetCyclesBoundOrderQueue(t *testing.T) {
	const (
		maxTracked = 4
		batch      = 2
	)
	tracker := NewTrackerWithCapacity(sequence.PolicyWarnAndContinue, maxTracked, 4, batch)

	for cycle := 0; cycle < 10_000; cycle++ {
		id := fmt.Sprintf("t-%d", cycle%maxTracked)
		require.NoError(t, tracker.Validate(id, uint64(cycle+1)))
		tracker.Reset(id)
		assert.LessOrEqual(t, len(tracker.trackOrder), 2*maxTracked+batch,
			"order queue must stay proportional to the live set")
		assert.LessOrEqual(t, len(tracker.prunedOrder), 2*4+batch)
	}
	assert.LessOrEqual(t, tracker.TrackedCount(), maxTracked)
}

// TestParsePolicy tests policy parsing from configuration strings.
func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    sequence.Policy
		wantErr bool
	}{
		{input: "continue", want: sequence.PolicyContinue},
		{input: "halt", want: sequence.PolicyHalt},
		{input: "warn-and-continue", want: sequence.PolicyWarnAndContinue},
		{input: "", want: sequence.PolicyWarnAndContinue},
		{input: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		got, err := sequence.ParsePolicy(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePolicy(%q): expected error, got nil", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePolicy(%q): unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
