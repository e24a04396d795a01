package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// Sender delivers one quiz result notification.
type Sender interface {
	Send(ctx context.Context, event domain.QuizResultEvent) error
}

// NotificationStats are running totals since the queue was created.
type NotificationStats struct {
	Enqueued  int64
	Delivered int64
	Failed    int64
	Dropped   int64
}

// NotificationQueue decouples result notifications from the request path.
// Enqueue never blocks; each accepted event is handed to the sender once.
type NotificationQueue struct {
	sender      Sender
	events      chan domain.QuizResultEvent
	workers     int
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	enqueued  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewNotificationQueue creates a queue holding at most size pending events.
func NewNotificationQueue(sender Sender, size, workers int, sendTimeout time.Duration) *NotificationQueue {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &NotificationQueue{
		sender:      sender,
		events:      make(chan domain.QuizResultEvent, size),
		workers:     workers,
		sendTimeout: sendTimeout,
	}
}

// Start launches the worker pool.
func (q *NotificationQueue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.run()
		}
		log.Printf("Notification queue started with %d workers (capacity %d)", q.workers, cap(q.events))
	})
}

// Enqueue accepts event if there is room. A full or stopped queue drops it.
func (q *NotificationQueue) Enqueue(event domain.QuizResultEvent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		log.Printf("Notification dropped for user %s topic %s: queue stopped", event.UserID, event.TopicID)
		return false
	}

	select {
	case q.events <- event:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		log.Printf("Notification dropped for user %s topic %s: queue full", event.UserID, event.TopicID)
		return false
	}
}

// Stop refuses new events, lets the workers drain what is queued and waits
// for them until ctx is done.
func (q *NotificationQueue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
	q.Start()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Notification queue drained: %+v", q.Stats())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification queue drain: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the counters.
func (q *NotificationQueue) Stats() NotificationStats {
	return NotificationStats{
		Enqueued:  q.enqueued.Load(),
		Delivered: q.delivered.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *NotificationQueue) run() {
	defer q.wg.Done()
	for event := range q.events {
		q.deliver(event)
	}
}

func (q *NotificationQueue) deliver(event domain.QuizResultEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "NotificationQueue.deliver", telemetry.SpanAttributes{
		UserID:    event.UserID,
		TopicID:   event.TopicID,
		Operation: "notify",
	})
	defer span.End()

	if err := q.sender.Send(ctx, event); err != nil {
		q.failed.Add(1)
		log.Printf("Notification failed for user %s topic %s: %v", event.UserID, event.TopicID, err)
		telemetry.CaptureError(ctx, domain.ErrNotificationFailure.WithCause(err))
		return
	}
	q.delivered.Add(1)
}
