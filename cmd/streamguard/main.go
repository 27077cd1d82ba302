package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	intbrokerlink "github.com/streamguard/streamguard-go/internal/brokerlink"
	intcheckpoint "github.com/streamguard/streamguard-go/internal/checkpoint"
	"github.com/streamguard/streamguard-go/internal/consumer"
	"github.com/streamguard/streamguard-go/internal/logging"
	"github.com/streamguard/streamguard-go/internal/opsapi"
	intsequence "github.com/streamguard/streamguard-go/internal/sequence"
	"github.com/streamguard/streamguard-go/pkg/brokerlink"
	"github.com/streamguard/streamguard-go/pkg/envelope"
	"github.com/streamguard/streamguard-go/pkg/sequence"
)

const (
	// Application info
	appName    = "StreamGuard"
	appVersion = "0.1.0"
)

func main() {
	// Command-line flags
	var (
		brokers        = flag.String("brokers", "localhost:9092", "Comma-separated Kafka bootstrap servers")
		topic          = flag.String("topic", "", "Topic to consume (required)")
		partition      = flag.Int("partition", 0, "Partition to consume")
		policyName     = flag.String("gap-policy", "warn-and-continue", "Gap recovery policy: warn-and-continue, continue, or halt")
		strict         = flag.Bool("strict", true, "Dead-letter malformed envelopes instead of skipping them")
		maxMessageSize = flag.Int64("max-message-size", 1<<20, "Decompressed payload size ceiling in bytes")
		checkpointPath = flag.String("checkpoint", "", "Checkpoint file path (empty disables file checkpointing)")
		checkpointIvl  = flag.Duration("checkpoint-interval", 30*time.Second, "How often progress is persisted")
		dlqTopic       = flag.String("dlq-topic", "", "Dead-letter topic (empty disables the DLQ)")
		offsetReset    = flag.String("offset-reset", "oldest", "Start position when no checkpoint exists: newest or oldest")
		opsListen      = flag.String("ops-listen", ":8710", "Ops API listen address (empty disables the ops API)")
		opsSecret      = flag.String("ops-secret", "", "Ops API token signing key (empty disables auth)")
		logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		showVersion    = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	log := logging.New(*logLevel)
	defer log.Sync()

	if *topic == "" {
		log.Fatal("topic is required")
	}

	policy, err := sequence.ParsePolicy(*policyName)
	if err != nil {
		log.Fatal("invalid gap recovery policy", zap.Error(err))
	}

	log.Info("starting",
		zap.String("app", appName),
		zap.String("version", appVersion),
		zap.String("topic", *topic),
		zap.Int("partition", *partition),
		zap.String("policy", policy.String()))

	// Resume from the file checkpoint when one exists. Absence is not an
	// error; the broker's offset-reset position applies instead.
	startOffset := int64(-1)
	if *checkpointPath != "" {
		cp, err := intcheckpoint.Load(*checkpointPath, *topic, int32(*partition))
		if err != nil {
			log.Fatal("failed to load checkpoint", zap.String("path", *checkpointPath), zap.Error(err))
		}
		if cp != nil {
			startOffset = cp.Offset
			log.Info("resuming from checkpoint", zap.Int64("offset", cp.Offset))
		}
	}

	brokerCfg := &intbrokerlink.Config{
		BootstrapServers: strings.Split(*brokers, ","),
		Topic:            *topic,
		Partition:        int32(*partition),
		AutoOffsetReset:  *offsetReset,
	}
	brokerCfg.SetDefaults()
	if err := brokerCfg.Validate(); err != nil {
		log.Fatal("invalid broker configuration", zap.Error(err))
	}

	fetcher, err := intbrokerlink.NewPartitionFetcher(brokerCfg, startOffset)
	if err != nil {
		log.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer fetcher.Close()

	cfg := consumer.NewConfig(*topic, int32(*partition)).WithPolicy(policy)
	cfg.EnableStrictValidation = *strict
	cfg.MaxMessageSize = *maxMessageSize
	if *checkpointPath != "" {
		cfg = cfg.WithCheckpoint(*checkpointPath, *checkpointIvl)
	}

	var dlq *intbrokerlink.DLQProducer
	if *dlqTopic != "" {
		cfg = cfg.WithDLQ(*dlqTopic, cfg.DLQTimeout)
		dlq, err = intbrokerlink.NewDLQProducer(brokerCfg, cfg.DLQTimeout)
		if err != nil {
			log.Fatal("failed to create DLQ producer", zap.Error(err))
		}
		defer dlq.Close()
	}

	validator := consumer.NewSyncValidator(intsequence.NewTracker(policy))

	loop, err := consumer.New(cfg, fetcher, &logSink{log: log}, dlqOrNil(dlq), validator, log)
	if err != nil {
		log.Fatal("failed to create consumer", zap.Error(err))
	}
	if startOffset >= 0 {
		loop.ResumeFrom(startOffset)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ops *opsapi.Server
	if *opsListen != "" {
		ops = opsapi.NewServer(opsapi.Config{
			Addr:           *opsListen,
			SecretKey:      *opsSecret,
			CheckpointPath: *checkpointPath,
			Topic:          *topic,
			Partition:      int32(*partition),
		}, validator, log)
		go func() {
			if err := ops.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("ops API server failed", zap.Error(err))
			}
		}()
		log.Info("ops API listening", zap.String("addr", *opsListen))
	}

	setupGracefulShutdown(cancel, log)

	err = loop.Run(ctx)
	if err != nil && err != context.Canceled {
		log.Error("consumer stopped with error", zap.Error(err))
	}

	if ops != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := ops.Stop(shutdownCtx); err != nil {
			log.Warn("error stopping ops API", zap.Error(err))
		}
	}

	log.Info("stopped", zap.Int64("next_offset", loop.NextOffset()))
}

// dlqOrNil avoids handing the loop a typed-nil DeadLetterPublisher.
func dlqOrNil(dlq *intbrokerlink.DLQProducer) brokerlink.DeadLetterPublisher {
	if dlq == nil {
		return nil
	}
	return dlq
}

// logSink delivers validated messages to the process log. Real deployments
// replace this with application-specific handling behind the DeliverySink
// interface.
type logSink struct {
	log *zap.Logger
}

func (s *logSink) Deliver(_ context.Context, msg *envelope.Message, raw *brokerlink.RawMessage) error {
	s.log.Info("message",
		zap.String("thread_id", msg.ThreadID),
		zap.Uint64("sequence", msg.Sequence),
		zap.String("type", msg.Type),
		zap.Int64("offset", raw.Offset),
		zap.Int("payload_bytes", len(msg.Payload)))
	return nil
}

// setupGracefulShutdown cancels the run context on SIGINT/SIGTERM/SIGHUP.
func setupGracefulShutdown(cancel context.CancelFunc, log *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()
}
