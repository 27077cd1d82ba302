package consumer

import (
	"errors"
	"fmt"
	"time"

	"github.com/streamguard/streamguard-go/pkg/sequence"
)

var (
	// ErrEmptyTopic is returned when the topic is empty
	ErrEmptyTopic = errors.New("topic cannot be empty")
	// ErrInvalidMaxMessageSize is returned when the size ceiling is not positive
	ErrInvalidMaxMessageSize = errors.New("max message size must be positive")
	// ErrMissingDLQTopic is returned when the DLQ is enabled without a topic
	ErrMissingDLQTopic = errors.New("DLQ topic cannot be empty when DLQ is enabled")
)

// Config represents configuration for a consumer Loop.
type Config struct {
	// Topic and Partition identify the partition this loop owns. They are
	// also echoed into a checkpoint synthesized from a legacy file.
	Topic     string
	Partition int32

	// EnableSequenceValidation toggles ordering validation. When enabled, a
	// sequence number of exactly 0 marks a legacy producer and is skipped
	// from validation entirely (neither accepted nor flagged).
	EnableSequenceValidation bool

	// GapRecoveryPolicy selects how the validator recovers from gaps.
	GapRecoveryPolicy sequence.Policy

	// EnableStrictValidation controls whether malformed envelopes are raised
	// (dead-lettered) or tolerated by skipping the message.
	EnableStrictValidation bool

	// MaxMessageSize is the ceiling, in bytes, enforced on decompressed
	// payloads by the bounded decoder.
	MaxMessageSize int64

	// CheckpointPath is where consumer progress is persisted. Empty disables
	// file checkpointing.
	CheckpointPath string

	// CheckpointInterval is how often progress is persisted, decoupled from
	// per-message processing.
	CheckpointInterval time.Duration

	// EnableDLQ, DLQTopic and DLQTimeout configure dead-letter routing for
	// messages that fail decode or strict validation. With the DLQ disabled
	// such messages are dropped with a logged warning.
	EnableDLQ  bool
	DLQTopic   string
	DLQTimeout time.Duration

	// FetchBatchSize caps how many messages one poll may return.
	FetchBatchSize int

	// IdleWait is how long the loop sleeps after an empty poll.
	IdleWait time.Duration
}

// NewConfig creates a consumer configuration with safe defaults for a given
// partition.
func NewConfig(topic string, partition int32) *Config {
	return &Config{
		Topic:                    topic,
		Partition:                partition,
		EnableSequenceValidation: true,
		GapRecoveryPolicy:        sequence.PolicyWarnAndContinue,
		EnableStrictValidation:   true,
		MaxMessageSize:           1 << 20, // 1MB
		CheckpointInterval:       30 * time.Second,
		DLQTimeout:               10 * time.Second,
		FetchBatchSize:           100,
		IdleWait:                 100 * time.Millisecond,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Topic == "" {
		return ErrEmptyTopic
	}
	if c.Partition < 0 {
		return fmt.Errorf("partition cannot be negative: %d", c.Partition)
	}
	if c.MaxMessageSize <= 0 {
		return ErrInvalidMaxMessageSize
	}
	if c.EnableDLQ && c.DLQTopic == "" {
		return ErrMissingDLQTopic
	}
	return nil
}

// SetDefaults sets sensible default values for unset numeric fields. Boolean
// toggles keep their zero values; use NewConfig for the documented defaults.
func (c *Config) SetDefaults() {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 30 * time.Second
	}
	if c.DLQTimeout <= 0 {
		c.DLQTimeout = 10 * time.Second
	}
	if c.FetchBatchSize <= 0 {
		c.FetchBatchSize = 100
	}
	if c.IdleWait <= 0 {
		c.IdleWait = 100 * time.Millisecond
	}
}

// WithCheckpoint sets the checkpoint path and interval.
func (c *Config) WithCheckpoint(path string, interval time.Duration) *Config {
	c.CheckpointPath = path
	if interval > 0 {
		c.CheckpointInterval = interval
	}
	return c
}

// WithDLQ enables dead-letter routing to the given topic.
func (c *Config) WithDLQ(topic string, timeout time.Duration) *Config {
	c.EnableDLQ = true
	c.DLQTopic = topic
	if timeout > 0 {
		c.DLQTimeout = timeout
	}
	return c
}

// WithPolicy sets the gap recovery policy.
func (c *Config) WithPolicy(p sequence.Policy) *Config {
	c.GapRecoveryPolicy = p
	return c
}
