package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobProcessor drains one batch of queued work per call.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls a JobProcessor repeatedly, sleeping interval between the end
// of one batch and the start of the next.
type Worker struct {
	name      string
	processor JobProcessor
	interval  time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWorker(name string, processor JobProcessor, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		name:      name,
		processor: processor,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs a batch straight away and then one per interval. It returns when
// ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)
	log.Printf("%s worker: polling every %v", w.name, w.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker: %v", w.name, ctx.Err())
			return
		case <-w.stop:
			log.Printf("%s worker: stopped", w.name)
			return
		case <-timer.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("%s worker: batch failed: %v", w.name, err)
			}
			timer.Reset(w.interval)
		}
	}
}

// Stop asks Start to return and waits for an in-flight batch. It must only be
// called after Start; repeated calls are fine.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
