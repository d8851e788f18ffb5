package publisher

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"submission_service/internal/domain"
	"submission_service/pkg/logging"
)

var (
	ErrQueueFull       = errors.New("publish queue is full")
	ErrPublisherClosed = errors.New("publisher is closed")
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type job struct {
	ctx   context.Context
	event domain.Event
}

// AsyncPublisher hands events to a fixed pool of workers. Events of one
// submission always land on the same worker, so their order is kept.
type AsyncPublisher struct {
	next   Publisher
	logger *logging.Logger
	queues []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncPublisher(next Publisher, workers, queueSize int, logger *logging.Logger) *AsyncPublisher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	p := &AsyncPublisher{
		next:   next,
		logger: logger,
		queues: make([]chan job, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan job, queueSize)
		p.wg.Add(1)
		go p.run(p.queues[i])
	}
	return p
}

// Publish enqueues the event without waiting for delivery. A full queue
// is reported as a failure.
func (p *AsyncPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	q := p.queues[p.shard(event)]
	select {
	case q <- job{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *AsyncPublisher) run(q <-chan job) {
	defer p.wg.Done()
	for j := range q {
		if err := p.next.Publish(j.ctx, j.event); err != nil {
			meta := j.event.Meta()
			p.logger.Error(j.ctx, "Failed to deliver event",
				zap.String("submission_id", meta.SubmissionID.String()),
				zap.String("event_id", meta.EventID.String()),
				zap.String("event_kind", string(j.event.Kind())),
				zap.Error(err),
			)
		}
	}
}

func (p *AsyncPublisher) shard(event domain.Event) int {
	id := event.Meta().SubmissionID
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(len(p.queues)))
}
