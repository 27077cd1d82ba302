package sequence

import "fmt"

// GapError reports a received sequence number greater than the next expected
// one, implying missing messages. GapSize is always Received - Expected.
type GapError struct {
	ThreadID string
	Expected uint64
	Received uint64
	GapSize  uint64
}

func (e *GapError) Error() string {
	return fmt.Sprintf("sequence gap on thread %q: expected %d, received %d (%d missing)",
		e.ThreadID, e.Expected, e.Received, e.GapSize)
}

// DuplicateError reports an exact repeat of the immediately preceding message:
// the received Sequence equals Expected - 1.
type DuplicateError struct {
	ThreadID string
	Sequence uint64
	Expected uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate message on thread %q: sequence %d already processed (expected %d)",
		e.ThreadID, e.Sequence, e.Expected)
}

// ReorderedError reports an older message arriving late: the received Sequence
// is smaller than Expected - 1, so it is not a simple repeat of the previous
// message but belongs further in the past.
type ReorderedError struct {
	ThreadID string
	Sequence uint64
	Expected uint64
}

func (e *ReorderedError) Error() string {
	return fmt.Sprintf("reordered message on thread %q: sequence %d arrived late (expected %d)",
		e.ThreadID, e.Sequence, e.Expected)
}
