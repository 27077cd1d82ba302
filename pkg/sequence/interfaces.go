package sequence

// Validator validates per-thread message ordering.
//
// Implementations are not safe for concurrent use; see the package
// documentation for the single-owner discipline.
type Validator interface {
	// Validate checks whether seq is the next expected sequence number for
	// threadID. A thread that has never been seen (or whose tracking state was
	// pruned) establishes a baseline: the call succeeds for any seq and the
	// next expected value becomes seq+1. Ordering violations are returned as
	// *GapError, *DuplicateError or *ReorderedError.
	Validate(threadID string, seq uint64) error

	// Reset clears one thread's tracked state entirely; the thread's next
	// message is treated as a fresh baseline.
	Reset(threadID string)

	// Clear clears all tracked state.
	Clear()

	// ResetHalted removes a thread from the halted set without touching its
	// expected sequence. The next Validate call still checks against the old
	// expected value; callers that want a clean restart also call Reset.
	ResetHalted(threadID string)

	// IsHalted reports whether the thread is currently blocked under
	// PolicyHalt.
	IsHalted(threadID string) bool

	// HaltedThreads returns the identifiers of all currently halted threads.
	HaltedThreads() []string

	// ExpectedForThread returns the next expected sequence number for a
	// tracked thread. The second return value is false when the thread is not
	// tracked.
	ExpectedForThread(threadID string) (uint64, bool)
}
