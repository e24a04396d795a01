package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []domain.QuizResultEvent
	fail    map[string]bool
	release chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, event domain.QuizResultEvent) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[event.TopicID] {
		return errors.New("smtp: connection refused")
	}
	s.sent = append(s.sent, event)
	return nil
}

func (s *recordingSender) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, e := range s.sent {
		out[i] = e.TopicID
	}
	return out
}

func event(topic string) domain.QuizResultEvent {
	return domain.QuizResultEvent{UserID: "u1", TopicID: topic, Recipient: "learner@example.com", Score: 8, TotalQuestions: 10}
}

func TestNotificationQueue_DeliversEachEventOnce(t *testing.T) {
	sender := &recordingSender{}
	q := NewNotificationQueue(sender, 10, 3, time.Second)
	q.Start()

	for _, topic := range []string{"a", "b", "c", "d"} {
		assert.True(t, q.Enqueue(event(topic)))
	}
	require.NoError(t, q.Stop(context.Background()))

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, sender.topics())
	assert.Equal(t, NotificationStats{Enqueued: 4, Delivered: 4}, q.Stats())
}

func TestNotificationQueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	q := NewNotificationQueue(sender, 1, 1, time.Second)
	q.Start()

	assert.True(t, q.Enqueue(event("in-flight")))
	assert.Eventually(t, func() bool { return len(q.events) == 0 }, time.Second, 5*time.Millisecond)

	assert.True(t, q.Enqueue(event("buffered")))

	done := make(chan bool)
	go func() { done <- q.Enqueue(event("overflow")) }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(sender.release)
	require.NoError(t, q.Stop(context.Background()))

	assert.ElementsMatch(t, []string{"in-flight", "buffered"}, sender.topics())
	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Delivered)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestNotificationQueue_FailuresAreCountedNotRetried(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"broken": true}}
	q := NewNotificationQueue(sender, 10, 1, time.Second)
	q.Start()

	q.Enqueue(event("broken"))
	q.Enqueue(event("fine"))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, []string{"fine"}, sender.topics())
	assert.Equal(t, NotificationStats{Enqueued: 2, Delivered: 1, Failed: 1}, q.Stats())
}

func TestNotificationQueue_StopDrainsWithoutStart(t *testing.T) {
	sender := &recordingSender{}
	q := NewNotificationQueue(sender, 10, 2, time.Second)

	q.Enqueue(event("queued"))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, []string{"queued"}, sender.topics())
	assert.False(t, q.Enqueue(event("late")))
	assert.Equal(t, int64(1), q.Stats().Dropped)
	require.NoError(t, q.Stop(context.Background()))
}

func TestNotificationQueue_StopHonoursDeadline(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	defer close(sender.release)
	q := NewNotificationQueue(sender, 10, 1, time.Second)
	q.Start()
	q.Enqueue(event("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Stop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
