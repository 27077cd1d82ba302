package sequence

import (
	"github.com/streamguard/streamguard-go/pkg/sequence"
)

const (
	// MaxTrackedThreads caps the number of threads with live tracking state.
	MaxTrackedThreads = 100_000
	// MaxPrunedThreads caps the set of thread IDs remembered as pruned.
	MaxPrunedThreads = 10_000
	// PruneBatch is the number of tracked threads evicted in one pass when
	// MaxTrackedThreads would be exceeded.
	PruneBatch = 1_000
)

// Tracker implements sequence.Validator with bounded memory. Tracking state
// for the oldest threads (by insertion order) is evicted in batches once the
// tracked-thread cap is reached; evicted thread IDs are remembered in a
// bounded pruned set so that a reappearing thread re-establishes a baseline
// instead of being reported as a gap.
//
// Tracker is not safe for concurrent use. One Tracker is owned by one
// sequential partition loop.
type Tracker struct {
	policy sequence.Policy

	expectedNext map[string]uint64
	trackOrder   []string // insertion order of tracked threads; may hold stale entries
	halted       map[string]struct{}
	pruned       map[string]struct{}
	prunedOrder  []string

	maxTracked int
	maxPruned  int
	pruneBatch int
}

// NewTracker creates a Tracker with the given gap recovery policy and the
// default capacity bounds.
func NewTracker(policy sequence.Policy) *Tracker {
	return NewTrackerWithCapacity(policy, MaxTrackedThreads, MaxPrunedThreads, PruneBatch)
}

// NewTrackerWithCapacity creates a Tracker with explicit capacity bounds.
// Intended for tests and for deployments that tune memory use.
func NewTrackerWithCapacity(policy sequence.Policy, maxTracked, maxPruned, pruneBatch int) *Tracker {
	if maxTracked < 1 {
		maxTracked = 1
	}
	if pruneBatch < 1 {
		pruneBatch = 1
	}
	if maxPruned < 0 {
		maxPruned = 0
	}
	return &Tracker{
		policy:       policy,
		expectedNext: make(map[string]uint64),
		halted:       make(map[string]struct{}),
		pruned:       make(map[string]struct{}),
		maxTracked:   maxTracked,
		maxPruned:    maxPruned,
		pruneBatch:   pruneBatch,
	}
}

// Policy returns the active gap recovery policy.
func (t *Tracker) Policy() sequence.Policy {
	return t.policy
}

// Validate implements sequence.Validator.
func (t *Tracker) Validate(threadID string, seq uint64) error {
	expected, tracked := t.expectedNext[threadID]
	if !tracked {
		// First time this thread is seen by this process, or its state was
		// pruned. Either way the message must establish a baseline: a process
		// restarting mid-stream must not report every first message as a gap.
		delete(t.pruned, threadID)
		t.track(threadID, seq+1)
		return nil
	}

	if _, blocked := t.halted[threadID]; blocked {
		// A halted thread keeps failing against the unchanged expected value
		// until an operator resets it; it never silently re-accepts messages.
		var gapSize uint64
		if seq > expected {
			gapSize = seq - expected
		}
		return &sequence.GapError{
			ThreadID: threadID,
			Expected: expected,
			Received: seq,
			GapSize:  gapSize,
		}
	}

	switch {
	case seq == expected:
		t.expectedNext[threadID] = expected + 1
		return nil

	case seq == expected-1:
		return &sequence.DuplicateError{
			ThreadID: threadID,
			Sequence: seq,
			Expected: expected,
		}

	case seq < expected:
		return &sequence.ReorderedError{
			ThreadID: threadID,
			Sequence: seq,
			Expected: expected,
		}

	default: // seq > expected: gap
		gap := &sequence.GapError{
			ThreadID: threadID,
			Expected: expected,
			Received: seq,
			GapSize:  seq - expected,
		}
		if t.policy == sequence.PolicyHalt {
			t.halted[threadID] = struct{}{}
			return gap
		}
		// Continue / WarnAndContinue: resynchronize to the received sequence.
		t.expectedNext[threadID] = seq + 1
		return gap
	}
}

// Reset implements sequence.Validator.
func (t *Tracker) Reset(threadID string) {
	delete(t.expectedNext, threadID)
	delete(t.halted, threadID)
	delete(t.pruned, threadID)
}

// Clear implements sequence.Validator.
func (t *Tracker) Clear() {
	t.expectedNext = make(map[string]uint64)
	t.trackOrder = nil
	t.halted = make(map[string]struct{})
	t.pruned = make(map[string]struct{})
	t.prunedOrder = nil
}

// ResetHalted implements sequence.Validator.
func (t *Tracker) ResetHalted(threadID string) {
	delete(t.halted, threadID)
}

// IsHalted implements sequence.Validator.
func (t *Tracker) IsHalted(threadID string) bool {
	_, ok := t.halted[threadID]
	return ok
}

// HaltedThreads implements sequence.Validator.
func (t *Tracker) HaltedThreads() []string {
	out := make([]string, 0, len(t.halted))
	for id := range t.halted {
		out = append(out, id)
	}
	return out
}

// ExpectedForThread implements sequence.Validator.
func (t *Tracker) ExpectedForThread(threadID string) (uint64, bool) {
	seq, ok := t.expectedNext[threadID]
	return seq, ok
}

// TrackedCount returns the number of threads with live tracking state.
func (t *Tracker) TrackedCount() int {
	return len(t.expectedNext)
}

// PrunedCount returns the number of thread IDs remembered as pruned.
func (t *Tracker) PrunedCount() int {
	return len(t.pruned)
}

// track inserts a brand-new thread, evicting a batch of the oldest tracked
// threads first if the insert would exceed the tracked-thread cap.
func (t *Tracker) track(threadID string, next uint64) {
	if len(t.expectedNext) >= t.maxTracked {
		t.evictBatch()
	}
	t.expectedNext[threadID] = next
	t.trackOrder = append(t.trackOrder, threadID)

	// Reset-then-revalidate cycles leave stale entries behind; compact once
	// they outnumber the live ones so the queue stays bounded by the caps.
	if len(t.trackOrder) > 2*len(t.expectedNext)+t.pruneBatch {
		t.trackOrder = compactOrder(t.trackOrder, func(id string) bool {
			_, live := t.expectedNext[id]
			return live
		})
	}
}

// compactOrder rewrites an insertion-order queue in place, keeping the oldest
// occurrence of each live id and dropping everything stale or duplicated.
func compactOrder(order []string, live func(string) bool) []string {
	seen := make(map[string]struct{}, len(order))
	kept := order[:0]
	for _, id := range order {
		if !live(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	return kept
}

// evictBatch moves up to pruneBatch of the oldest tracked threads into the
// pruned set, then trims the pruned set back to its cap, dropping its oldest
// members entirely.
func (t *Tracker) evictBatch() {
	evicted := 0
	for evicted < t.pruneBatch && len(t.trackOrder) > 0 {
		id := t.trackOrder[0]
		t.trackOrder = t.trackOrder[1:]
		if _, live := t.expectedNext[id]; !live {
			// Stale order entry left behind by Reset or an earlier eviction.
			continue
		}
		delete(t.expectedNext, id)
		delete(t.halted, id)
		if _, already := t.pruned[id]; !already {
			t.pruned[id] = struct{}{}
			t.prunedOrder = append(t.prunedOrder, id)
		}
		evicted++
	}

	for len(t.pruned) > t.maxPruned && len(t.prunedOrder) > 0 {
		oldest := t.prunedOrder[0]
		t.prunedOrder = t.prunedOrder[1:]
		delete(t.pruned, oldest)
	}

	// Re-baselined threads leave the pruned set outside this loop, so the
	// order queue collects stale entries of its own.
	if len(t.prunedOrder) > 2*len(t.pruned)+t.pruneBatch {
		t.prunedOrder = compactOrder(t.prunedOrder, func(id string) bool {
			_, live := t.pruned[id]
			return live
		})
	}
}

// markPruned forces a thread into the pruned set, used by tests to simulate a
// previously evicted thread.
func (t *Tracker) markPruned(threadID string) {
	delete(t.expectedNext, threadID)
	if _, ok := t.pruned[threadID]; !ok {
		t.pruned[threadID] = struct{}{}
		t.prunedOrder = append(t.prunedOrder, threadID)
	}
}

// Verify that Tracker implements the Validator interface at compile time
var _ sequence.Validator = (*Tracker)(nil)
