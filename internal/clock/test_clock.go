package clock

// TestClock is the logical clock used in backtests: time only moves when
// the event pump calls Advance with the ts_init of the next datum. It
// never spawns a goroutine, so a backtest is fully deterministic and
// single-threaded end to end.
type TestClock struct {
	nowNs int64
	reg   *registry
}

// NewTestClock constructs a TestClock starting at ts_init 0.
func NewTestClock() *TestClock {
	return &TestClock{reg: newRegistry()}
}

func (c *TestClock) TimestampNs() int64 { return c.nowNs }

func (c *TestClock) SetTimeAlert(name string, atNs int64, handler Handler) error {
	return c.reg.add(name, atNs, 0, 0, handler)
}

func (c *TestClock) SetTimer(name string, intervalNs, startNs, stopNs int64, handler Handler) error {
	return c.reg.add(name, startNs, intervalNs, stopNs, handler)
}

func (c *TestClock) CancelTimer(name string) { c.reg.cancel(name) }
func (c *TestClock) CancelAll()              { c.reg.cancelAll() }

// Advance moves the clock forward to toNs and returns every timer/alert
// event that fires in (current, toNs], in scheduled-time order with
// registration-order tiebreaks. The caller is responsible for invoking each
// Event's Handler on the single event loop thread — Advance itself never
// calls a handler.
func (c *TestClock) Advance(toNs int64) []Event {
	if toNs < c.nowNs {
		toNs = c.nowNs
	}
	events := c.reg.popDue(toNs)
	c.nowNs = toNs
	return events
}

var _ Clock = (*TestClock)(nil)
