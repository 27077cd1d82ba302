package brokerlink

import (
	"errors"
	"time"
)

// AutoOffsetReset values: where to start when no checkpoint exists.
const (
	OffsetResetNewest = "newest"
	OffsetResetOldest = "oldest"
)

// Config holds broker transport configuration for one partition consumer.
type Config struct {
	BootstrapServers []string
	Topic            string
	Partition        int32

	// ClientID identifies this consumer to the broker.
	ClientID string

	// AutoOffsetReset picks the starting position when no checkpoint exists:
	// "newest" or "oldest".
	AutoOffsetReset string

	// EnableAutoCommit and AutoCommitInterval configure broker-side offset
	// commits, independent of the file checkpoint.
	EnableAutoCommit   bool
	AutoCommitInterval time.Duration

	// FetchBackoffInitial and FetchBackoffMax bound the exponential backoff
	// applied between failed polls.
	FetchBackoffInitial time.Duration
	FetchBackoffMax     time.Duration

	// TLS settings for the broker connection.
	TLSEnable             bool
	TLSInsecureSkipVerify bool

	// SASL/PLAIN credentials.
	SASLEnable   bool
	SASLUsername string
	SASLPassword string
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return errors.New("bootstrap servers cannot be empty")
	}
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	if c.Partition < 0 {
		return errors.New("partition cannot be negative")
	}
	if c.AutoOffsetReset != OffsetResetNewest && c.AutoOffsetReset != OffsetResetOldest {
		return errors.New("auto offset reset must be \"newest\" or \"oldest\"")
	}
	if c.SASLEnable && c.SASLUsername == "" {
		return errors.New("SASL username cannot be empty when SASL is enabled")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "streamguard"
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = OffsetResetOldest
	}
	if c.AutoCommitInterval <= 0 {
		c.AutoCommitInterval = 5 * time.Second
	}
	if c.FetchBackoffInitial <= 0 {
		c.FetchBackoffInitial = 250 * time.Millisecond
	}
	if c.FetchBackoffMax <= 0 {
		c.FetchBackoffMax = 10 * time.Second
	}
}
