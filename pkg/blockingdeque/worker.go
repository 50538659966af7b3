package blockingdeque

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
)

// Handler processes one element. A non-nil error schedules a retry.
type Handler[V any] func(ctx context.Context, v V) error

// Worker consumes a queue with the reliable-queue pattern: each element is
// atomically moved from the tail of the source to the head of a processing
// queue, handled, and only then removed. An element is never lost if the
// process dies mid-handling; Recover puts stranded elements back.
//
// The worker takes from the tail, so producers get FIFO order by pushing
// with PutFirst or OfferFirst. Elements pushed with Put are handled newest
// first.
//
// Elements that keep failing after MaxRetries are moved to the dead-letter
// queue. Handlers must tolerate redelivery after a crash.
type Worker[V any] struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc

	source     *Deque[V]
	raw        *Deque[[]byte] // source viewed as bytes so acks match exactly
	processing *Deque[[]byte]
	deadLetter *Deque[[]byte]
	handler    Handler[V]
	config     WorkerConfig

	processed atomic.Int64
	failed    atomic.Int64
}

// DefaultWorkerConfig returns sensible defaults for a worker.
func DefaultWorkerConfig() WorkerConfig {
	return DefaultConfig().Worker
}

// NewWorker creates a worker for source. Zero fields of config take their
// defaults. It does not start consuming until Start.
func NewWorker[V any](source *Deque[V], handler Handler[V], config WorkerConfig) (*Worker[V], error) {
	if source == nil {
		return nil, fmt.Errorf("source queue cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	defaults := DefaultWorkerConfig()
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaults.PollTimeout
	}
	if config.Rate <= 0 {
		config.Rate = defaults.Rate
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.RetryBackoffMax < config.RetryBackoff {
		config.RetryBackoffMax = config.RetryBackoff
	}
	if config.ProcessingQueue == "" {
		config.ProcessingQueue = source.name + ":processing"
	}
	if config.DeadLetterQueue == "" {
		config.DeadLetterQueue = source.name + ":dead"
	}
	if config.ProcessingQueue == source.name || config.DeadLetterQueue == source.name {
		return nil, fmt.Errorf("processing and dead-letter queues must differ from %s", source.name)
	}

	raw := newDeque(source.executor, source.name, codec.Bytes())
	return &Worker[V]{
		source:     source,
		raw:        raw,
		processing: newDeque(source.executor, config.ProcessingQueue, codec.Bytes()),
		deadLetter: newDeque(source.executor, config.DeadLetterQueue, codec.Bytes()),
		handler:    handler,
		config:     config,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// SinkHandler returns a handler that exports each element to s, encoded
// with c and tagged with queue.
func SinkHandler[V any](s Sink, queue string, c codec.Codec[V]) Handler[V] {
	return func(ctx context.Context, v V) error {
		payload, err := c.Encode(v)
		if err != nil {
			return err
		}
		return s.Write(ctx, queue, payload)
	}
}

// Start begins the worker goroutine.
// This is non-blocking - the worker runs in a separate goroutine.
// Call Stop() to gracefully shut it down.
func (w *Worker[V]) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Printf("[WORKER:%s] Already running", w.source.name)
		return nil
	}
	w.running = true
	// Reset channels for restart capability
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	pollCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.run(ctx, pollCtx, stop, done)
	log.Printf("[WORKER:%s] Started with rate: %d elements/sec, processing queue: %s",
		w.source.name, w.config.Rate, w.config.ProcessingQueue)
	return nil
}

// Stop gracefully stops the worker.
// It waits for the element being handled to finish before returning. A
// move in flight when Stop is called may still land in the processing
// queue; Recover returns it.
func (w *Worker[V]) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, stopCh, done := w.cancel, w.stopCh, w.doneCh
	w.mu.Unlock()

	log.Printf("[WORKER:%s] Stopping...", w.source.name)
	close(stopCh)
	cancel()
	<-done
	log.Printf("[WORKER:%s] Stopped", w.source.name)
	return nil
}

// IsRunning returns whether the worker is currently running.
func (w *Worker[V]) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Processed returns the number of elements handled successfully.
func (w *Worker[V]) Processed() int64 {
	return w.processed.Load()
}

// Failed returns the number of elements moved to the dead-letter queue.
func (w *Worker[V]) Failed() int64 {
	return w.failed.Load()
}

// GetConfig returns the worker configuration with defaults applied.
func (w *Worker[V]) GetConfig() WorkerConfig {
	return w.config
}

// Recover moves every element left in the processing queue to the tail of
// the source in one atomic step and returns how many were moved. The oldest
// stranded element becomes the source tail, so it is the next one consumed,
// ahead of the backlog. Call it before Start while no other worker shares
// the processing queue.
func (w *Worker[V]) Recover(ctx context.Context) (int, error) {
	keys := []string{w.config.ProcessingQueue, w.source.name}
	n, err := core.Eval(ctx, w.processing.executor, w.config.ProcessingQueue, core.RequeueTailScript, core.ReplyInt, keys).Await(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover %s: %w", w.config.ProcessingQueue, err)
	}
	if n > 0 {
		log.Printf("[WORKER:%s] Recovered %d elements from %s", w.source.name, n, w.config.ProcessingQueue)
	}
	return int(n), nil
}

// run is the main worker loop. Waits use pollCtx, which Stop cancels;
// handlers get ctx so an element in progress can finish. On exit it clears
// running unless a later Start already replaced this run.
func (w *Worker[V]) run(ctx, pollCtx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		if w.doneCh == done {
			w.running = false
			w.cancel()
		}
		w.mu.Unlock()
		close(done)
	}()

	limiter := rate.NewLimiter(rate.Limit(w.config.Rate), 1)

	log.Printf("[WORKER:%s] Loop started - Rate: %d elements/sec, Poll timeout: %v",
		w.source.name, w.config.Rate, w.config.PollTimeout)

	startTime := time.Now()
	for {
		select {
		case <-stop:
			log.Printf("[WORKER:%s] Received stop signal, processed %d elements in %v",
				w.source.name, w.processed.Load(), time.Since(startTime))
			return
		case <-ctx.Done():
			log.Printf("[WORKER:%s] Context cancelled, processed %d elements in %v",
				w.source.name, w.processed.Load(), time.Since(startTime))
			return
		default:
		}

		if err := limiter.Wait(pollCtx); err != nil {
			continue
		}

		data, ok, err := w.raw.PollLastAndOfferFirstTo(pollCtx, w.config.ProcessingQueue, w.config.PollTimeout)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				continue
			}
			log.Printf("[WORKER:%s] Move error: %v", w.source.name, err)
			if errors.Is(err, ErrExecutorClosed) || !sleep(w.config.RetryBackoff, stop) {
				return
			}
			continue
		}
		if !ok {
			continue
		}

		w.process(ctx, data, stop)
	}
}

// process handles one element that is already in the processing queue.
func (w *Worker[V]) process(ctx context.Context, data []byte, stop <-chan struct{}) {
	start := time.Now()

	v, err := w.source.codec.Decode(data)
	if err != nil {
		log.Printf("[WORKER:%s] ERROR: Cannot decode element, dead-lettering: %v", w.source.name, err)
		w.deadLetterElement(ctx, data, start)
		return
	}

	backoff := w.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err = w.handler(ctx, v)
		if err == nil {
			break
		}
		if attempt >= w.config.MaxRetries {
			log.Printf("[WORKER:%s] ERROR: Handler failed %d times, dead-lettering: %v",
				w.source.name, attempt+1, err)
			w.deadLetterElement(ctx, data, start)
			return
		}
		log.Printf("[WORKER:%s] Handler failed (attempt %d/%d), retrying in %v: %v",
			w.source.name, attempt+1, w.config.MaxRetries+1, backoff, err)
		if !sleep(backoff, stop) {
			// Left in the processing queue for Recover.
			return
		}
		backoff = min(backoff*2, w.config.RetryBackoffMax)
	}

	w.ack(ctx, data)
	w.processed.Add(1)
	w.source.metrics.ObserveElement(w.source.name, "processed", time.Since(start))
}

func (w *Worker[V]) deadLetterElement(ctx context.Context, data []byte, start time.Time) {
	if err := w.deadLetter.Put(ctx, data); err != nil {
		log.Printf("[WORKER:%s] ERROR: Failed to push to %s, element stays in %s: %v",
			w.source.name, w.config.DeadLetterQueue, w.config.ProcessingQueue, err)
		return
	}
	w.ack(ctx, data)
	w.failed.Add(1)
	w.source.metrics.ObserveElement(w.source.name, "dead_lettered", time.Since(start))
	w.source.metrics.ObserveDeadLetter(w.source.name)
}

func (w *Worker[V]) ack(ctx context.Context, data []byte) {
	removed, err := w.processing.Remove(ctx, data)
	if err != nil {
		log.Printf("[WORKER:%s] ERROR: Failed to remove element from %s: %v",
			w.source.name, w.config.ProcessingQueue, err)
		return
	}
	if !removed {
		log.Printf("[WORKER:%s] Element already gone from %s", w.source.name, w.config.ProcessingQueue)
	}
}

// sleep waits for d. It returns false if stop closed first.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
