package notify

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"github.com/festivalops/planstore/internal/metrics"
)

// Dispatcher queues events in memory and drains them to the sink at a bounded
// rate from a background goroutine. Publish never blocks: when the queue is
// full the event is dropped and logged.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	limiter *rate.Limiter

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewDispatcher creates a dispatcher publishing at most publishRate events
// per second with the given queue capacity.
func NewDispatcher(sink Sink, publishRate float64, bufferSize int) *Dispatcher {
	if publishRate <= 0 {
		publishRate = 10
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	return &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, bufferSize),
		limiter: rate.NewLimiter(rate.Limit(publishRate), 1),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (d *Dispatcher) Start() {
	go d.drain()
}

// Publish enqueues an event without blocking. Full-queue drops are counted
// and logged, never surfaced to the caller.
func (d *Dispatcher) Publish(event Event) {
	select {
	case <-d.stopped:
		return
	default:
	}

	select {
	case d.queue <- event:
		metrics.EventQueueDepth.Set(float64(len(d.queue)))
	default:
		metrics.EventsDropped.Inc()
		log.Printf("[NOTIFY] Event queue full, dropping event %s (%s)", event.ID, event.Type)
	}
}

// Stop shuts the dispatcher down, draining whatever is already queued, and
// closes the sink.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		close(d.queue)
		<-d.done
		if err := d.sink.Close(); err != nil {
			log.Printf("[NOTIFY] Failed to close sink: %v", err)
		}
	})
}

func (d *Dispatcher) drain() {
	defer close(d.done)

	for event := range d.queue {
		metrics.EventQueueDepth.Set(float64(len(d.queue)))

		if err := d.limiter.Wait(context.Background()); err != nil {
			return
		}

		if err := d.sink.Send(context.Background(), event); err != nil {
			metrics.EventsPublished.WithLabelValues("error").Inc()
			log.Printf("[NOTIFY] Failed to publish event %s (%s): %v", event.ID, event.Type, err)
			continue
		}
		metrics.EventsPublished.WithLabelValues("success").Inc()
	}
}
