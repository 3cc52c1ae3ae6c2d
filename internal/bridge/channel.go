package bridge

import (
	"sync"
	"sync/atomic"
	"time"
)

// Default channel and method names used between the collector and its UI host.
const (
	DefaultChannel       = "notification_collector_channel"
	MethodNotificationIn = "onNotificationReceived"

	defaultBuffer = 64
)

// Call is one method invocation crossing the channel.
type Call struct {
	Channel string
	Method  string
	Args    map[string]any
	At      time.Time
}

// Channel is a named, in-process method channel.
//
// Contract:
//   - Invoke never blocks; it is a no-op while nothing is attached.
//   - Receivers get a buffered channel; a slow receiver misses calls.
//   - Invoke is safe to call from any goroutine.
type Channel struct {
	name   string
	buffer int

	mu    sync.RWMutex
	recvs map[uint64]chan Call
	seq   atomic.Uint64

	delivered atomic.Uint64
	missed    atomic.Uint64
}

type Option func(*Channel)

// WithBuffer sets the receive buffer used when Attach is called with buffer <= 0.
func WithBuffer(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.buffer = n
		}
	}
}

func New(name string, opts ...Option) *Channel {
	if name == "" {
		name = DefaultChannel
	}
	c := &Channel{name: name, buffer: defaultBuffer, recvs: map[uint64]chan Call{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Channel) Name() string { return c.name }

// Attached reports whether at least one receiver is attached.
func (c *Channel) Attached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recvs) > 0
}

// Invoke delivers a call to every attached receiver and reports how many got it.
func (c *Channel) Invoke(method string, args map[string]any) int {
	call := Call{Channel: c.name, Method: method, Args: args, At: time.Now()}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.recvs) == 0 {
		return 0
	}
	n := 0
	for _, ch := range c.recvs {
		select {
		case ch <- call:
			n++
			c.delivered.Add(1)
		default:
			c.missed.Add(1)
		}
	}
	return n
}

// Attach registers a receiver. The returned detach func closes the
// receive channel and is safe to call more than once.
func (c *Channel) Attach(buffer int) (<-chan Call, func()) {
	if buffer <= 0 {
		buffer = c.buffer
	}
	ch := make(chan Call, buffer)
	id := c.seq.Add(1)

	c.mu.Lock()
	c.recvs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			// Holding the write lock excludes in-flight Invoke sends.
			c.mu.Lock()
			delete(c.recvs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, detach
}

// Delivered returns how many calls reached a receiver.
func (c *Channel) Delivered() uint64 { return c.delivered.Load() }

// Missed returns how many calls were dropped on full receivers.
func (c *Channel) Missed() uint64 { return c.missed.Load() }
