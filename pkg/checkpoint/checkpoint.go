// Package checkpoint defines the durable consumer progress record.
//
// An OffsetCheckpoint marks the position a consumer resumes from after a
// restart. The checkpoint file on disk is the sole durable copy; in-memory
// values are transient and rebuilt on each save.
package checkpoint

import "encoding/json"

// OffsetCheckpoint is the durable (topic, partition, offset) record.
// Offset is the position of the next message to consume. Immutable value type.
type OffsetCheckpoint struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// New creates a new OffsetCheckpoint.
func New(topic string, partition int32, offset int64) *OffsetCheckpoint {
	return &OffsetCheckpoint{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
	}
}

// Marshal serializes the checkpoint to its structured on-disk format:
// a compact JSON record of the three fields.
func (c *OffsetCheckpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Equal reports whether two checkpoints carry the same position.
func (c *OffsetCheckpoint) Equal(other *OffsetCheckpoint) bool {
	if other == nil {
		return false
	}
	return c.Topic == other.Topic && c.Partition == other.Partition && c.Offset == other.Offset
}
