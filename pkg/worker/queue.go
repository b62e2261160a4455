package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/messaging"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

// Dispatcher hands a patient id to whatever runs reconciles.
type Dispatcher interface {
	Dispatch(patientID uuid.UUID)
}

// QueueDispatcher pushes ids onto a shared queue for the worker process.
// Dispatch only buffers the id; a background goroutine does the push. When
// the buffer is full or the push fails, the id goes to fallback instead.
type QueueDispatcher struct {
	queue    messaging.Queue
	key      string
	timeout  time.Duration
	pending  chan uuid.UUID
	fallback Dispatcher
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueueDispatcher(queue messaging.Queue, key string, bufferSize int, fallback Dispatcher, logger *logger.Logger, metrics *metrics.Metrics) *QueueDispatcher {
	if bufferSize <= 0 {
		panic("bufferSize must be greater than 0")
	}

	return &QueueDispatcher{
		queue:    queue,
		key:      key,
		timeout:  time.Second,
		pending:  make(chan uuid.UUID, bufferSize),
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start launches the goroutine that pushes buffered ids.
func (d *QueueDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

func (d *QueueDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-d.pending:
			if !ok {
				return
			}
			d.enqueue(ctx, id)
		}
	}
}

func (d *QueueDispatcher) enqueue(ctx context.Context, patientID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.queue.Enqueue(ctx, d.key, patientID.String()); err != nil {
		d.metrics.Dispatches.WithLabelValues("redis", "fallback").Inc()
		d.logger.Error(err, "Failed to enqueue reconcile, running in process", "patient_id", patientID.String())
		d.fallback.Dispatch(patientID)
		return
	}
	d.metrics.Dispatches.WithLabelValues("redis", "queued").Inc()
}

// Dispatch never blocks on the queue.
func (d *QueueDispatcher) Dispatch(patientID uuid.UUID) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Dispatches.WithLabelValues("redis", "fallback").Inc()
		d.fallback.Dispatch(patientID)
		return
	}

	select {
	case d.pending <- patientID:
	default:
		d.metrics.Dispatches.WithLabelValues("redis", "overflow").Inc()
		d.logger.Warn("Enqueue buffer full, running in process", "patient_id", patientID.String())
		d.fallback.Dispatch(patientID)
	}
}

// Stop rejects further buffering and waits until buffered ids are pushed.
func (d *QueueDispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.pending)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Consumer drains the shared queue and runs handler for every id.
type Consumer struct {
	queue   messaging.Queue
	key     string
	wait    time.Duration
	backoff time.Duration
	handler Handler
	logger  *logger.Logger
}

func NewConsumer(queue messaging.Queue, key string, handler Handler, logger *logger.Logger) *Consumer {
	return &Consumer{
		queue:   queue,
		key:     key,
		wait:    5 * time.Second,
		backoff: time.Second,
		handler: handler,
		logger:  logger,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("Starting reconcile consumer", "queue", c.key)

	for {
		if ctx.Err() != nil {
			c.logger.Info("Shutting down reconcile consumer")
			return
		}

		value, err := c.queue.Dequeue(ctx, c.key, c.wait)
		if errors.Is(err, messaging.ErrNoMessage) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error(err, "Failed to dequeue reconcile")
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		id, err := uuid.Parse(value)
		if err != nil {
			c.logger.Warn("Discarding malformed queue entry", "value", value)
			continue
		}
		c.handler(ctx, id)
	}
}
