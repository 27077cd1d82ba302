// Package brokerlink implements the broker transport contracts over Kafka
// (Shopify/sarama) plus an in-memory variant for tests and examples.
package brokerlink

import (
	"context"
	"crypto/tls"
	"strconv"
	"time"

	"github.com/Shopify/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/streamguard/streamguard-go/pkg/brokerlink"
)

// Header keys attached to dead-lettered messages.
const (
	HeaderDLQReason          = "streamguard-dlq-reason"
	HeaderDLQOriginTopic     = "streamguard-origin-topic"
	HeaderDLQOriginPartition = "streamguard-origin-partition"
	HeaderDLQOriginOffset    = "streamguard-origin-offset"
)

// PartitionFetcher fetches raw messages from one Kafka partition. Failed polls
// back off exponentially between FetchBackoffInitial and FetchBackoffMax;
// each successful poll resets the backoff.
type PartitionFetcher struct {
	cfg      *Config
	consumer sarama.Consumer
	pc       sarama.PartitionConsumer
	backoff  *backoff.ExponentialBackOff
}

// NewPartitionFetcher connects to the broker and starts consuming the
// configured partition. startOffset is the next offset to consume; pass a
// negative value to fall back to the configured AutoOffsetReset position.
func NewPartitionFetcher(cfg *Config, startOffset int64) (*PartitionFetcher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	consumer, err := sarama.NewConsumer(cfg.BootstrapServers, buildSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to brokers")
	}

	offset := startOffset
	if offset < 0 {
		if cfg.AutoOffsetReset == OffsetResetNewest {
			offset = sarama.OffsetNewest
		} else {
			offset = sarama.OffsetOldest
		}
	}

	pc, err := consumer.ConsumePartition(cfg.Topic, cfg.Partition, offset)
	if err != nil {
		consumer.Close()
		return nil, errors.Wrapf(err, "consuming %s/%d from offset %d", cfg.Topic, cfg.Partition, offset)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.FetchBackoffInitial
	bo.MaxInterval = cfg.FetchBackoffMax
	bo.MaxElapsedTime = 0 // never give up; the loop owns cancellation

	return &PartitionFetcher{
		cfg:      cfg,
		consumer: consumer,
		pc:       pc,
		backoff:  bo,
	}, nil
}

// Fetch implements brokerlink.Fetcher. It blocks until at least one message
// is available or ctx is done, then drains up to max without blocking.
func (f *PartitionFetcher) Fetch(ctx context.Context, max int) ([]*brokerlink.RawMessage, error) {
	if max < 1 {
		max = 1
	}

	var first *sarama.ConsumerMessage
	for first == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-f.pc.Messages():
			first = msg
		case err := <-f.pc.Errors():
			wait := f.backoff.NextBackOff()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			return nil, errors.Wrap(err, "partition fetch failed")
		}
	}
	f.backoff.Reset()

	out := make([]*brokerlink.RawMessage, 0, max)
	out = append(out, convertMessage(first))
	for len(out) < max {
		select {
		case msg := <-f.pc.Messages():
			out = append(out, convertMessage(msg))
		default:
			return out, nil
		}
	}
	return out, nil
}

// Close implements brokerlink.Fetcher.
func (f *PartitionFetcher) Close() error {
	if err := f.pc.Close(); err != nil {
		f.consumer.Close()
		return errors.Wrap(err, "closing partition consumer")
	}
	return errors.Wrap(f.consumer.Close(), "closing consumer")
}

func convertMessage(msg *sarama.ConsumerMessage) *brokerlink.RawMessage {
	return &brokerlink.RawMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
	}
}

// DLQProducer publishes failed messages to a dead-letter topic within a
// bounded timeout.
type DLQProducer struct {
	producer sarama.SyncProducer
	timeout  time.Duration
}

// NewDLQProducer connects a synchronous producer for dead-letter publishing.
func NewDLQProducer(cfg *Config, timeout time.Duration) (*DLQProducer, error) {
	cfg.SetDefaults()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	saramaCfg := buildSaramaConfig(cfg)
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Timeout = timeout

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaCfg)
	if err != nil {
		return nil, errors.Wrap(err, "connecting dead-letter producer")
	}
	return &DLQProducer{producer: producer, timeout: timeout}, nil
}

// Publish implements brokerlink.DeadLetterPublisher.
func (p *DLQProducer) Publish(ctx context.Context, topic string, msg *brokerlink.RawMessage, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pm := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderDLQReason), Value: []byte(reason)},
			{Key: []byte(HeaderDLQOriginTopic), Value: []byte(msg.Topic)},
			{Key: []byte(HeaderDLQOriginPartition), Value: []byte(strconv.FormatInt(int64(msg.Partition), 10))},
			{Key: []byte(HeaderDLQOriginOffset), Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		},
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(pm)
		done <- err
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Errorf("dead-letter publish to %s timed out after %s", topic, p.timeout)
	case err := <-done:
		return errors.Wrapf(err, "dead-letter publish to %s", topic)
	}
}

// Close implements brokerlink.DeadLetterPublisher.
func (p *DLQProducer) Close() error {
	return errors.Wrap(p.producer.Close(), "closing dead-letter producer")
}

// buildSaramaConfig maps the transport config onto sarama's.
func buildSaramaConfig(cfg *Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = cfg.ClientID
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.EnableAutoCommit
	sc.Consumer.Offsets.AutoCommit.Interval = cfg.AutoCommitInterval

	if cfg.TLSEnable {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}
	}
	if cfg.SASLEnable {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = cfg.SASLUsername
		sc.Net.SASL.Password = cfg.SASLPassword
	}
	return sc
}

// Verify interface conformance at compile time
var (
	_ brokerlink.Fetcher             = (*PartitionFetcher)(nil)
	_ brokerlink.DeadLetterPublisher = (*DLQProducer)(nil)
)
