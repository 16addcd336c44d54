package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/metrics"
)

// Processor grades one queued submission. It reports whether the message was a duplicate.
type Processor interface {
	Execute(ctx context.Context, sub *domain.Submission) (bool, error)
}

// WorkerPool manages a fixed-size pool of goroutines that grade submissions.
type WorkerPool struct {
	size      int
	jobs      <-chan *domain.SubmissionMessage
	processor Processor
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.SubmissionMessage, processor Processor, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      size,
		jobs:      jobs,
		processor: processor,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current submissions and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Submission channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

// handle processes one message. A panic is recovered and the message is dead-lettered.
func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.SubmissionMessage) {
	sub := msg.Submission
	log := p.logger.With(zap.Int("worker_id", id), zap.String("submission_id", sub.ID.String()))

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panic recovered", zap.Any("panic", r))
			if nackErr := msg.Nack(false); nackErr != nil {
				log.Error("Failed to NACK message", zap.Error(nackErr))
			}
		}
	}()

	log.Info("Worker processing submission",
		zap.String("lesson_id", sub.LessonID),
		zap.Int("test_cases", len(sub.TestCases)),
	)

	startTime := time.Now()
	isDuplicate, err := p.processor.Execute(ctx, sub)
	elapsed := time.Since(startTime)

	if err != nil {
		log.Error("Submission processing failed", zap.Duration("elapsed", elapsed), zap.Error(err))

		// No requeue: failed submissions go to the DLQ.
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if isDuplicate {
		log.Debug("Duplicate submission skipped")
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message", zap.Error(ackErr))
	}
}
