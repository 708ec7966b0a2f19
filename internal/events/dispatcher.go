package events

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher fans events out to subscribers on a deferred schedule. Publish
// never blocks: when the dispatcher or a subscriber cannot keep up, events
// are dropped and counted, not retried.
type Dispatcher struct {
	logger *zap.Logger
	in     chan Event

	mu   sync.Mutex
	subs []chan Event

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewDispatcher constructs a Dispatcher buffering up to queueSize pending events.
func NewDispatcher(logger *zap.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Dispatcher{
		logger: logger,
		in:     make(chan Event, queueSize),
		stop:   make(chan struct{}),
	}
}

// Start begins the background delivery loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop terminates delivery and closes all subscriber channels. Events still
// queued are delivered first.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.subs {
		close(sub)
	}
	d.subs = nil
}

// Publish queues an event for delivery. It never blocks the caller.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.in <- event:
	default:
		d.logger.Warn("event queue full, dropping event", zap.String("event", event.Name()))
	}
}

// Subscribe registers a new subscriber. The returned channel is closed on Stop.
func (d *Dispatcher) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	sub := make(chan Event, buffer)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
	return sub
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.in:
			d.deliver(event)
		case <-d.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case event := <-d.in:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.mu.Lock()
	subs := d.subs
	d.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			d.logger.Debug("subscriber lagging, dropping event", zap.String("event", event.Name()))
		}
	}
}
