package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/metrics"
)

var (
	ErrAlertChannelFull = errors.New("alert channel full")
	ErrDispatcherClosed = errors.New("alert dispatcher closed")
)

// AlertDispatcher queues alerts for delivery by a fixed set of workers.
// Send never blocks: when the queue is full the alert is dropped and
// counted.
type AlertDispatcher struct {
	ch      chan domain.Alert
	worker  *AlertWorker
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAlertDispatcher(size, workers int, worker *AlertWorker, logger *slog.Logger) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertDispatcher{
		ch:      make(chan domain.Alert, size),
		worker:  worker,
		workers: workers,
		logger:  logger,
	}
}

func (d *AlertDispatcher) Send(ctx context.Context, a domain.Alert) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.ch <- a:
		return nil
	default:
		metrics.AlertChannelDrops.Inc()
		return ErrAlertChannelFull
	}
}

// Start launches the workers. They stop when ctx is cancelled or after
// Close has drained the queue.
func (d *AlertDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(ctx)
		}()
	}
}

func (d *AlertDispatcher) run(ctx context.Context) {
	for {
		select {
		case a, ok := <-d.ch:
			if !ok {
				return
			}
			d.worker.Deliver(a)

		case <-ctx.Done():
			return
		}
	}
}

// Close stops accepting alerts and waits up to timeout for the queued ones
// to be delivered.
func (d *AlertDispatcher) Close(timeout time.Duration) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("alert dispatcher drain timed out", "pending", len(d.ch))
	}
}
