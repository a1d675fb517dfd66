package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 60 * time.Second
)

// Coordinator wraps a Sink with chunking and a fixed-backoff retry policy.
// Each attempt re-sends the whole message from the first chunk; a failed
// chunk aborts the remainder of that attempt.
type Coordinator struct {
	sink        Sink
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         *zap.Logger
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMaxAttempts overrides the attempt budget per message.
func WithMaxAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the pause between attempts.
func WithBackoff(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithSleep injects the inter-attempt wait, letting tests skip real time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) CoordinatorOption {
	return func(c *Coordinator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewCoordinator constructs a Coordinator around a sink.
func NewCoordinator(sink Sink, opts ...CoordinatorOption) (*Coordinator, error) {
	if sink == nil {
		return nil, errors.New("coordinator: sink is required")
	}

	c := &Coordinator{
		sink:        sink,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sleep:       contextSleep,
		log:         logger.WithModule("delivery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Channel reports the wrapped sink's transport name.
func (c *Coordinator) Channel() string { return c.sink.Name() }

// Deliver splits text and sends the chunks in order, retrying the whole
// message on failure. Exhausted retries are a terminal failure for this
// message only; the caller decides whether to continue with others.
func (c *Coordinator) Deliver(ctx context.Context, destination, text string) error {
	if text == "" {
		return nil
	}

	chunks := SplitMessage(text, MaxMessageLength)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return err
			}
		}

		lastErr = c.sendChunks(ctx, destination, chunks)
		if lastErr == nil {
			metrics.DeliveryAttempts.WithLabelValues(c.sink.Name(), "success").Inc()
			return nil
		}

		metrics.DeliveryAttempts.WithLabelValues(c.sink.Name(), "failure").Inc()
		c.log.Warn("delivery attempt failed",
			zap.String("sink", c.sink.Name()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(lastErr))

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return apperrors.ErrDeliveryFailed.WithInternal(
		fmt.Errorf("%d attempts exhausted: %w", c.maxAttempts, lastErr))
}

func (c *Coordinator) sendChunks(ctx context.Context, destination string, chunks []string) error {
	for i, chunk := range chunks {
		if err := c.sink.Send(ctx, destination, chunk); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
