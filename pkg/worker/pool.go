package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

// Handler processes one patient id. It owns its own error reporting.
type Handler func(ctx context.Context, patientID uuid.UUID)

type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Pool runs Handler on a fixed number of goroutines fed by a bounded queue.
// Dispatch never blocks; when the queue is full the id is dropped.
type Pool struct {
	queue   chan uuid.UUID
	handler Handler
	config  PoolConfig
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(handler Handler, config PoolConfig, logger *logger.Logger, metrics *metrics.Metrics) *Pool {
	// Config validation instead of defaults
	if config.Workers <= 0 {
		panic("Workers must be greater than 0")
	}
	if config.QueueSize <= 0 {
		panic("QueueSize must be greater than 0")
	}

	return &Pool{
		queue:   make(chan uuid.UUID, config.QueueSize),
		handler: handler,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the workers. They exit once Stop has drained the queue or
// ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting reconcile pool", "workers", p.config.Workers, "queue_size", p.config.QueueSize)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-p.queue:
			if !ok {
				return
			}
			p.metrics.DispatchQueueDepth.Set(float64(len(p.queue)))
			p.handler(ctx, id)
		}
	}
}

func (p *Pool) Dispatch(patientID uuid.UUID) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.metrics.Dispatches.WithLabelValues("inprocess", "closed").Inc()
		p.logger.Warn("Reconcile pool stopped, dropping dispatch", "patient_id", patientID.String())
		return
	}

	select {
	case p.queue <- patientID:
		p.metrics.Dispatches.WithLabelValues("inprocess", "queued").Inc()
		p.metrics.DispatchQueueDepth.Set(float64(len(p.queue)))
	default:
		p.metrics.Dispatches.WithLabelValues("inprocess", "dropped").Inc()
		p.logger.Warn("Reconcile queue full, dropping dispatch", "patient_id", patientID.String())
	}
}

// Stop rejects further dispatches and waits for queued work to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Reconcile pool stopped")
}
