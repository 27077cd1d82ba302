// Package sequence defines the contract for per-thread message ordering
// validation.
//
// A "thread" is a logical ordered stream of messages (a conversation, a
// workflow run) multiplexed with many other threads onto a single broker
// partition. Producers stamp every message with a monotonically increasing
// sequence number per thread; a Validator decides, for each inbound message,
// whether it is the next expected one and reports gaps, duplicates and
// reorderings as typed errors.
//
// The package follows Go idioms:
//   - Ordering violations are returned as error values the caller can match
//     with errors.As; they are never panics.
//   - The active Policy decides whether a gap resynchronizes the thread or
//     halts it pending operator intervention.
//   - Implementations provide no internal locking: a validator instance is
//     owned by exactly one sequential caller (one partition loop). Deployments
//     that shard across partitions run one validator per partition.
//
// Example usage:
//
//	if err := validator.Validate(msg.ThreadID, msg.Sequence); err != nil {
//		var gap *sequence.GapError
//		if errors.As(err, &gap) {
//			log.Warn("sequence gap", "thread", gap.ThreadID, "missing", gap.GapSize)
//		}
//	}
package sequence
