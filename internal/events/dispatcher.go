package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull        = errors.New("event queue is full")
	ErrDispatcherClosed = errors.New("event dispatcher is closed")
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(kind Kind, handler EventHandler)
}

type registry struct {
	mu        sync.RWMutex
	listeners map[Kind][]EventHandler
}

func (r *registry) Subscribe(kind Kind, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[kind] = append(r.listeners[kind], handler)
}

func (r *registry) handlers(kind Kind) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventHandler{}, r.listeners[kind]...)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	registry
}

// NewInMemoryDispatcher creates a dispatcher that runs handlers inline.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{registry{listeners: make(map[Kind][]EventHandler)}}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, handler := range d.handlers(event.Kind) {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncDispatcher queues events and delivers them from background workers.
// Publish never blocks.
type AsyncDispatcher struct {
	registry
	queue   chan Event
	workers int
	logger  *zap.Logger
	wg      sync.WaitGroup
	stop    chan struct{}

	// sendMu orders Publish against shutdown so nothing is enqueued after the
	// final drain.
	sendMu sync.Mutex
	closed bool
}

// NewAsyncDispatcher creates a queued dispatcher.
func NewAsyncDispatcher(size, workers int, logger *zap.Logger) *AsyncDispatcher {
	if size <= 0 {
		size = 1000
	}
	if workers <= 0 {
		workers = 2
	}
	return &AsyncDispatcher{
		registry: registry{listeners: make(map[Kind][]EventHandler)},
		queue:    make(chan Event, size),
		stop:     make(chan struct{}),
		workers:  workers,
		logger:   logger.Named("events"),
	}
}

// Publish enqueues event, failing fast when the queue is full or closed.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (d *AsyncDispatcher) Pending() int {
	return len(d.queue)
}

// Run delivers events until ctx is done, then drains what is already queued.
func (d *AsyncDispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	<-ctx.Done()
	d.sendMu.Lock()
	d.closed = true
	d.sendMu.Unlock()
	close(d.stop)
	d.wg.Wait()
	return nil
}

func (d *AsyncDispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *AsyncDispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *AsyncDispatcher) deliver(ctx context.Context, event Event) {
	for _, handler := range d.handlers(event.Kind) {
		if err := handler(ctx, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.String("issue_id", event.IssueID),
				zap.Error(err))
		}
	}
}
