package ingest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/errors"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RebuildFunc publishes the store changes applied by the consumer.
type RebuildFunc func(ctx context.Context) error

// Consumer reads package updates from Kafka and hands them to a Handler.
// Store changes are published by calling rebuild at most once per flush
// interval, and only when something changed.
//
// Kafka offsets are cumulative per partition, so a message is never left
// behind while later ones are committed: invalid messages are logged and
// committed, any other failure is retried until it succeeds or ctx ends.
type Consumer struct {
	reader        Reader
	handler       *Handler
	rebuild       RebuildFunc
	flushInterval time.Duration
	retryBackoff  time.Duration
	logger        *slog.Logger
}

// NewReader creates a kafka-go reader for the configured topic.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

// NewConsumer creates a Consumer. rebuild may be nil when publication is
// driven elsewhere, e.g. by the scheduler.
func NewConsumer(reader Reader, handler *Handler, rebuild RebuildFunc, flushInterval time.Duration) *Consumer {
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Consumer{
		reader:        reader,
		handler:       handler,
		rebuild:       rebuild,
		flushInterval: flushInterval,
		retryBackoff:  defaultRetryBackoff,
		logger:        handler.logger.With("task", "kafka-consumer"),
	}
}

// Start consumes messages until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")

	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		c.flushLoop(ctx)
	}()
	defer func() { <-flushDone }()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Info("consumer stopping", "reason", err)
			return c.reader.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handle applies msg, retrying with exponential backoff until it is applied
// or rejected as invalid. It only returns an error when ctx ends first.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	backoff := c.retryBackoff
	for {
		err := c.handler.HandleMessage(ctx, msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		if stderrors.Is(err, errors.ErrInvalidInput) {
			c.logger.Warn("skipping invalid message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
			return nil
		}

		c.logger.Error("failed to process message, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (c *Consumer) flushLoop(ctx context.Context) {
	if c.rebuild == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

// Flush publishes pending store changes, if any.
func (c *Consumer) Flush(ctx context.Context) {
	if c.rebuild == nil {
		return
	}
	changes := c.handler.TakePending()
	if changes == 0 {
		return
	}
	if err := c.rebuild(ctx); err != nil {
		c.handler.pending.Add(changes)
		c.logger.Error("rebuild after ingest failed", "changes", changes, "error", err)
		return
	}
	c.logger.Debug("ingested changes published", "changes", changes)
}
