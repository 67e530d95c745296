// Package outbox runs best-effort work after a booking has committed:
// notifications, promo usage, membership hours, loyalty points and cache
// invalidation. Tasks run on a fixed worker pool; a failing task is logged
// and never affects the booking that queued it.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("outbox closed")

// Task is one unit of post-commit work.
type Task struct {
	ID        uuid.UUID
	Name      string
	BookingID uint64
	Run       func(ctx context.Context) error
}

// Outbox is an in-process task queue.
type Outbox struct {
	tasks   chan Task
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts workers goroutines draining a queue of the given size. Each
// task gets its own context bounded by timeout.
func New(workers, buffer int, timeout time.Duration, log logrus.FieldLogger) *Outbox {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	o := &Outbox{tasks: make(chan Task, buffer), log: log, timeout: timeout}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	return o
}

func (o *Outbox) worker(id int) {
	defer o.wg.Done()
	for t := range o.tasks {
		o.run(id, t)
	}
}

func (o *Outbox) run(worker int, t Task) {
	entry := o.log.WithFields(logrus.Fields{
		"task_id":    t.ID.String(),
		"task":       t.Name,
		"booking_id": t.BookingID,
		"worker":     worker,
	})
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()
	if err != nil {
		entry.WithError(err).Error("post-commit task failed")
		return
	}
	entry.WithField("took", time.Since(start).String()).Debug("post-commit task done")
}

// Enqueue schedules t. When the queue is full the task runs on its own
// goroutine instead of being dropped.
func (o *Outbox) Enqueue(t Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	select {
	case o.tasks <- t:
	default:
		o.log.WithFields(logrus.Fields{"task": t.Name, "booking_id": t.BookingID}).Warn("outbox queue full, running task inline")
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.run(-1, t)
		}()
	}
	return nil
}

// Close stops accepting tasks and waits for queued ones to finish or for
// ctx to expire.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.tasks)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
