// Package sink fans frame results out to the consumers of the service:
// the log, the decision journal, hook plugins, and live clients.
package sink

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ayusman/signalwatch/internal/decision"
	"github.com/ayusman/signalwatch/internal/pipeline"
)

// ErrQueueFull is returned by Async.Publish when the queue has no room.
var ErrQueueFull = errors.New("sink queue full")

// Sink consumes frame results.
type Sink interface {
	Publish(ctx context.Context, res pipeline.FrameResult) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, res pipeline.FrameResult) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, res pipeline.FrameResult) error {
	return f(ctx, res)
}

// Multi publishes to every sink in order. All sinks are called even when
// one fails; the errors are joined.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, res pipeline.FrameResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// changes remembers the last advisory seen by a sink.
type changes struct {
	mu   sync.Mutex
	last decision.Advisory
}

// observe records advisory and returns the previous one and whether it differs.
func (c *changes) observe(advisory decision.Advisory) (decision.Advisory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.last
	if prev == "" {
		prev = decision.AdvisoryNoData
	}
	c.last = advisory
	return prev, prev != advisory
}

// Log writes advisory transitions to the standard logger.
type Log struct {
	changes changes
}

// NewLog creates a Log sink.
func NewLog() *Log {
	return &Log{}
}

// Publish implements Sink.
func (l *Log) Publish(_ context.Context, res pipeline.FrameResult) error {
	d := res.Decision
	if prev, changed := l.changes.observe(d.Advisory); changed {
		log.Printf("Advisory %s -> %s (tracks: %d, red: %d, green: %d)",
			prev, d.Advisory, d.TotalTracks, d.RedVotes, d.GreenVotes)
	}
	if res.Dropped > 0 {
		log.Printf("Dropped %d invalid detections", res.Dropped)
	}
	return nil
}

// Async runs a sink on its own goroutine so slow consumers do not hold up
// the frame loop. Results are delivered in order; when the queue is full
// the result is rejected with ErrQueueFull.
type Async struct {
	next   Sink
	queue  chan pipeline.FrameResult
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a worker publishing to next through a queue of size.
func NewAsync(next Sink, size int) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		next:  next,
		queue: make(chan pipeline.FrameResult, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for res := range a.queue {
		if err := a.next.Publish(context.Background(), res); err != nil {
			log.Printf("Async sink: %v", err)
		}
	}
}

// Publish queues res for the worker.
func (a *Async) Publish(_ context.Context, res pipeline.FrameResult) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("sink closed")
	}
	select {
	case a.queue <- res:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting results and waits for the queue to drain.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
