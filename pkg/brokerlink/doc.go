// Package brokerlink defines the contracts between the consumer core and the
// broker transport.
//
// The consistency layer never talks to the broker directly. It consumes three
// narrow collaborators:
//   - Fetcher: the poll primitive yielding raw messages with their partition
//     offsets
//   - DeadLetterPublisher: the sink for messages that fail decode or strict
//     validation
//   - DeliverySink: the downstream destination for validated messages
//
// Connection management, partition assignment and TLS/SASL handshakes live
// behind these interfaces; internal/brokerlink ships a sarama-backed
// implementation and an in-memory one for tests and examples.
package brokerlink
