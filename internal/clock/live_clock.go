package clock

import (
	"sync"
	"time"
)

// LiveClock wraps OS wall-clock time. Timers fire on a dedicated reactor
// goroutine, but the reactor never invokes a Handler itself — it only
// pushes Events onto a channel the kernel's single event loop drains and
// dispatches: a background goroutine producing work, one consumer
// executing it, the same shape as a WS reconnect reactor.
type LiveClock struct {
	mu     sync.Mutex
	reg    *registry
	events chan Event
	wake   chan struct{}
	done   chan struct{}
}

// NewLiveClock starts the reactor goroutine and returns a ready clock.
func NewLiveClock() *LiveClock {
	c := &LiveClock{
		reg:    newRegistry(),
		events: make(chan Event, 256),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.reactor()
	return c
}

func (c *LiveClock) TimestampNs() int64 { return time.Now().UnixNano() }

func (c *LiveClock) SetTimeAlert(name string, atNs int64, handler Handler) error {
	c.mu.Lock()
	err := c.reg.add(name, atNs, 0, 0, handler)
	c.mu.Unlock()
	if err == nil {
		c.nudge()
	}
	return err
}

func (c *LiveClock) SetTimer(name string, intervalNs, startNs, stopNs int64, handler Handler) error {
	c.mu.Lock()
	err := c.reg.add(name, startNs, intervalNs, stopNs, handler)
	c.mu.Unlock()
	if err == nil {
		c.nudge()
	}
	return err
}

func (c *LiveClock) CancelTimer(name string) {
	c.mu.Lock()
	c.reg.cancel(name)
	c.mu.Unlock()
	c.nudge()
}

func (c *LiveClock) CancelAll() {
	c.mu.Lock()
	c.reg.cancelAll()
	c.mu.Unlock()
	c.nudge()
}

// Events returns the channel the kernel's event loop drains and dispatches
// fired timer events from.
func (c *LiveClock) Events() <-chan Event { return c.events }

// Close stops the reactor goroutine. Safe to call once.
func (c *LiveClock) Close() { close(c.done) }

func (c *LiveClock) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *LiveClock) reactor() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		c.mu.Lock()
		dueAtNs, ok := c.reg.nextDue()
		c.mu.Unlock()

		var wait time.Duration
		if ok {
			wait = time.Duration(dueAtNs-time.Now().UnixNano()) * time.Nanosecond
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-c.done:
			return
		case <-c.wake:
			continue
		case <-timer.C:
			c.mu.Lock()
			due := c.reg.popDue(time.Now().UnixNano())
			c.mu.Unlock()
			for _, ev := range due {
				select {
				case c.events <- ev:
				case <-c.done:
					return
				}
			}
		}
	}
}

var _ Clock = (*LiveClock)(nil)
