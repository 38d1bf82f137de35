package recon

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Listener receives engine phase-transition events. Delivery is best-effort
// and asynchronous; listeners must not assume they observe every event
// before a run completes.
type Listener func(engineID, message string)

type event struct {
	engineID string
	message  string
}

// Dispatcher fans engine events out to registered listeners from a single
// background goroutine. The queue is bounded and events are dropped (and
// counted) when it is full, so a slow listener can never stall the
// reconciliation pipeline.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	closed    bool
	queue     chan event
	done      chan struct{}
	dropped   atomic.Int64
	logger    *zap.Logger
}

const defaultQueueSize = 64

// NewDispatcher starts a dispatcher with the default queue size.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		queue:  make(chan event, defaultQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// Subscribe registers a listener for all subsequent events.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Publish enqueues an event without blocking. Returns false if the event
// was dropped because the queue was full or the dispatcher is closed.
func (d *Dispatcher) Publish(engineID, message string) bool {
	// The read lock keeps Close from closing the queue mid-send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- event{engineID: engineID, message: message}:
		return true
	default:
		d.dropped.Add(1)
		if d.logger != nil {
			d.logger.Warn("event queue full, dropping event", zap.String("message", message))
		}
		return false
	}
}

// Dropped returns how many events have been discarded so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops the dispatch goroutine after draining queued events.
// Publishes arriving after Close are dropped silently.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.mu.RLock()
		listeners := make([]Listener, len(d.listeners))
		copy(listeners, d.listeners)
		d.mu.RUnlock()
		for _, l := range listeners {
			l(ev.engineID, ev.message)
		}
	}
}
