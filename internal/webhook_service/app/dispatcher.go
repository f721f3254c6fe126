package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReplySender sends one outbound reply. Implemented by the Graph API client;
// mocked in tests.
type ReplySender interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// DeliveryJob is one unit of reply work handed off the request path.
type DeliveryJob struct {
	RecipientID string
	Text        string
}

// Dispatcher runs reply deliveries on a fixed worker pool, decoupled from the
// HTTP request cycle. Jobs are fire-and-forget: once enqueued they are not
// cancellable, and a process shutdown may drop in-flight deliveries.
type Dispatcher struct {
	sender    ReplySender
	logger    *slog.Logger
	jobs     chan DeliveryJob
	workers  int
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

func NewDispatcher(sender ReplySender, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender:  sender,
		logger:  logger.With("component", "dispatcher"),
		jobs:    make(chan DeliveryJob, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("Dispatcher started", "workers", d.workers, "queue_size", cap(d.jobs))
}

// Enqueue hands a job to the pool without ever blocking the caller. If the
// queue is full the job is dropped and counted; that loss is accepted the
// same way retry exhaustion is. Returns whether the job was accepted.
func (d *Dispatcher) Enqueue(job DeliveryJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Dispatch rejected, dispatcher stopped", "recipient_id", job.RecipientID)
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		dispatchDroppedCounter.Inc()
		d.logger.Error("Dispatch queue full, dropping delivery job", "recipient_id", job.RecipientID)
		return false
	}
}

// Stop closes intake and waits for the workers to drain queued jobs. Sends
// already in flight run to completion; anything beyond that is abandoned
// when the process exits.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.jobs)
		d.wg.Wait()
		d.logger.Info("Dispatcher stopped")
	})
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		taskID := uuid.NewString()
		logger := d.logger.With("task_id", taskID, "recipient_id", job.RecipientID, "worker", id)

		start := time.Now()
		// Deliveries deliberately run on a background context: the
		// originating HTTP response has already been written.
		err := d.sender.SendText(context.Background(), job.RecipientID, job.Text)
		deliveryDurationHist.Observe(time.Since(start).Seconds())

		if err != nil {
			deliveriesCounter.WithLabelValues("failure").Inc()
			logger.Error("Reply delivery failed permanently", "error", err)
			continue
		}
		deliveriesCounter.WithLabelValues("success").Inc()
		logger.Info("Reply delivered")
	}
}
