package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/healthtrack-api/pkg/messaging"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

type RedisBroker struct {
	client  *redis.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

var (
	_ messaging.Broker = (*RedisBroker)(nil)
	_ messaging.Queue  = (*RedisBroker)(nil)
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

var (
	_ messaging.Broker = (*RedisBroker)(nil)
	_ messaging.Queue  = (*RedisBroker)(nil)
)

func NewRedisBroker(ctx context.Context, config Config, logger *zerolog.Logger, m *metrics.Metrics) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBroker{
		client:  client,
		cb:      newBreaker("redis-broker", logger),
		logger:  logger,
		metrics: m,
	}, nil
}

func newBreaker(name string, logger *zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// do runs fn behind the breaker and records the outcome.
func (b *RedisBroker) do(operation string, fn func() error) error {
	start := time.Now()
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if b.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		b.metrics.RedisOperations.WithLabelValues(operation, status).Inc()
		b.metrics.RedisLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	return err
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.do("publish", func() error {
		return b.client.Publish(ctx, channel, payload).Err()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	msgChan := make(chan []byte, 100)

	go func() {
		defer func() {
			pubsub.Close()
			close(msgChan)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case msgChan <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}

// Enqueue pushes value onto the head of the list at key.
func (b *RedisBroker) Enqueue(ctx context.Context, key string, value string) error {
	return b.do("enqueue", func() error {
		return b.client.LPush(ctx, key, value).Err()
	})
}

// Dequeue pops from the tail of the list at key, blocking up to wait.
func (b *RedisBroker) Dequeue(ctx context.Context, key string, wait time.Duration) (string, error) {
	res, err := b.client.BRPop(ctx, wait, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", messaging.ErrNoMessage
	}
	if err != nil {
		return "", fmt.Errorf("failed to dequeue from %s: %w", key, err)
	}
	// BRPOP replies with [key, value]
	return res[1], nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
