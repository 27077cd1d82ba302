// Package consumer orchestrates the consistency layer: it polls the broker,
// runs every message through the bounded decoder and the sequence validator,
// delivers it or routes it to the dead-letter path, and persists the offset
// checkpoint on a timer independent of per-message outcomes.
package consumer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamguard/streamguard-go/internal/checkpoint"
	intenvelope "github.com/streamguard/streamguard-go/internal/envelope"
	"github.com/streamguard/streamguard-go/pkg/brokerlink"
	pkgcheckpoint "github.com/streamguard/streamguard-go/pkg/checkpoint"
	"github.com/streamguard/streamguard-go/pkg/sequence"
)

// Loop is the thin orchestrator around the consistency core. It owns exactly
// one partition and processes messages strictly sequentially; ordering
// guarantees hold only under that discipline.
type Loop struct {
	cfg       *Config
	fetcher   brokerlink.Fetcher
	sink      brokerlink.DeliverySink
	dlq       brokerlink.DeadLetterPublisher
	validator sequence.Validator
	log       *zap.Logger

	// instanceID distinguishes this process in logs across restarts.
	instanceID string

	// nextOffset is the offset of the next message to consume; -1 until the
	// first message is processed or a resume position is set. Atomic because
	// introspection surfaces read it while Run is writing.
	nextOffset atomic.Int64
}

// New creates a consumer Loop. dlq may be nil when the DLQ is disabled.
func New(cfg *Config, fetcher brokerlink.Fetcher, sink brokerlink.DeliverySink,
	dlq brokerlink.DeadLetterPublisher, validator sequence.Validator, log *zap.Logger) (*Loop, error) {

	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("delivery sink cannot be nil")
	}
	if cfg.EnableDLQ && dlq == nil {
		return nil, errors.New("DLQ publisher cannot be nil when DLQ is enabled")
	}
	if validator == nil {
		return nil, errors.New("validator cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	l := &Loop{
		cfg:        cfg,
		fetcher:    fetcher,
		sink:       sink,
		dlq:        dlq,
		validator:  validator,
		log:        log.With(zap.String("topic", cfg.Topic), zap.Int32("partition", cfg.Partition)),
		instanceID: uuid.NewString(),
	}
	l.nextOffset.Store(-1)
	return l, nil
}

// ResumeFrom sets the offset the loop reports in its first checkpoint, taken
// from a loaded checkpoint. Call before Run.
func (l *Loop) ResumeFrom(offset int64) {
	l.nextOffset.Store(offset)
}

// NextOffset returns the offset of the next message to consume, or -1 when
// nothing has been processed yet.
func (l *Loop) NextOffset() int64 {
	return l.nextOffset.Load()
}

// Validator exposes the loop's validator for introspection surfaces.
func (l *Loop) Validator() sequence.Validator {
	return l.validator
}

// Run polls and processes until ctx is cancelled, then persists a final
// checkpoint. A fetch error is logged and retried (the fetcher applies its
// own backoff); it never terminates the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("consumer loop starting",
		zap.String("instance", l.instanceID),
		zap.String("policy", l.cfg.GapRecoveryPolicy.String()))

	ticker := time.NewTicker(l.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.persistCheckpoint()
			l.log.Info("consumer loop stopped", zap.String("instance", l.instanceID))
			return ctx.Err()
		case <-ticker.C:
			l.persistCheckpoint()
		default:
		}

		msgs, err := l.fetcher.Fetch(ctx, l.cfg.FetchBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.log.Warn("fetch failed", zap.Error(err))
			continue
		}
		if len(msgs) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.cfg.IdleWait):
			}
			continue
		}

		for _, raw := range msgs {
			l.process(ctx, raw)
			l.nextOffset.Store(raw.Offset + 1)
		}
	}
}

// process runs one raw message through decode, validation and delivery. All
// failures are per-message; nothing here may take the loop down.
func (l *Loop) process(ctx context.Context, raw *brokerlink.RawMessage) {
	msg, err := intenvelope.DecodeStrict(raw.Value, l.cfg.MaxMessageSize)
	if err != nil {
		if errors.Is(err, intenvelope.ErrMalformedEnvelope) && !l.cfg.EnableStrictValidation {
			l.log.Debug("tolerating malformed envelope",
				zap.Int64("offset", raw.Offset), zap.Error(err))
			return
		}
		l.deadLetter(ctx, raw, err)
		return
	}

	if l.cfg.EnableSequenceValidation && msg.Sequence != 0 {
		if err := l.validator.Validate(msg.ThreadID, msg.Sequence); err != nil {
			if !l.handleOrderingError(msg.ThreadID, raw.Offset, err) {
				return
			}
		}
	}

	if err := l.sink.Deliver(ctx, msg, raw); err != nil {
		l.log.Error("delivery failed",
			zap.String("thread", msg.ThreadID),
			zap.Uint64("sequence", msg.Sequence),
			zap.Int64("offset", raw.Offset),
			zap.Error(err))
	}
}

// handleOrderingError logs an ordering violation and reports whether the
// message should still be delivered. Gaps under Continue/WarnAndContinue
// deliver the gapped message after the validator resynchronized; everything
// else is dropped.
func (l *Loop) handleOrderingError(threadID string, offset int64, err error) bool {
	var gap *sequence.GapError
	var dup *sequence.DuplicateError
	var reordered *sequence.ReorderedError

	switch {
	case errors.As(err, &gap):
		if l.cfg.GapRecoveryPolicy == sequence.PolicyHalt {
			l.log.Error("thread halted on sequence gap",
				zap.String("thread", threadID),
				zap.Uint64("expected", gap.Expected),
				zap.Uint64("received", gap.Received),
				zap.Uint64("missing", gap.GapSize),
				zap.Int64("offset", offset))
			return false
		}
		if l.cfg.GapRecoveryPolicy == sequence.PolicyWarnAndContinue {
			l.log.Warn("sequence gap, resynchronizing",
				zap.String("thread", threadID),
				zap.Uint64("expected", gap.Expected),
				zap.Uint64("received", gap.Received),
				zap.Uint64("missing", gap.GapSize),
				zap.Int64("offset", offset))
		}
		return true

	case errors.As(err, &dup):
		l.log.Debug("dropping duplicate message",
			zap.String("thread", threadID),
			zap.Uint64("sequence", dup.Sequence),
			zap.Int64("offset", offset))
		return false

	case errors.As(err, &reordered):
		l.log.Warn("dropping reordered message",
			zap.String("thread", threadID),
			zap.Uint64("sequence", reordered.Sequence),
			zap.Uint64("expected", reordered.Expected),
			zap.Int64("offset", offset))
		return false

	default:
		l.log.Error("unexpected validation error", zap.Error(err))
		return false
	}
}

// deadLetter routes a failed message to the DLQ, or drops it with a warning
// when the DLQ is disabled.
func (l *Loop) deadLetter(ctx context.Context, raw *brokerlink.RawMessage, cause error) {
	if !l.cfg.EnableDLQ {
		l.log.Warn("dropping undecodable message",
			zap.Int64("offset", raw.Offset), zap.Error(cause))
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, l.cfg.DLQTimeout)
	defer cancel()

	if err := l.dlq.Publish(publishCtx, l.cfg.DLQTopic, raw, cause.Error()); err != nil {
		l.log.Error("dead-letter publish failed",
			zap.Int64("offset", raw.Offset),
			zap.String("dlq_topic", l.cfg.DLQTopic),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	l.log.Info("message dead-lettered",
		zap.Int64("offset", raw.Offset),
		zap.String("dlq_topic", l.cfg.DLQTopic),
		zap.NamedError("cause", cause))
}

// persistCheckpoint writes current progress. Failures are loud (they risk
// reprocessing on restart) but never stop message flow.
func (l *Loop) persistCheckpoint() {
	next := l.nextOffset.Load()
	if l.cfg.CheckpointPath == "" || next < 0 {
		return
	}
	cp := pkgcheckpoint.New(l.cfg.Topic, l.cfg.Partition, next)
	if err := checkpoint.Store(l.cfg.CheckpointPath, cp); err != nil {
		l.log.Error("checkpoint write failed, progress may be reprocessed on restart",
			zap.String("path", l.cfg.CheckpointPath),
			zap.Int64("offset", next),
			zap.Error(err))
		return
	}
	l.log.Debug("checkpoint persisted", zap.Int64("offset", next))
}
