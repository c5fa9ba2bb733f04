// Package clock implements the kernel's virtual clock and timer subsystem:
// a LiveClock driven by OS wall-clock time and a TestClock driven by
// simulated event arrival, both exposing the same timer registration
// capability so strategies and components never need to know which is
// running underneath them.
package clock

import "fmt"

// Handler is invoked when a timer or time alert fires. Neither concrete
// clock calls Handler itself — firing produces an Event the kernel's single
// event loop drains and dispatches, preserving the no-concurrent-handlers
// guarantee.
type Handler func(Event)

// Event is one fired timer or time alert.
type Event struct {
	Name    string
	TsEvent int64
	TsInit  int64
	Handler Handler
}

// Clock is the capability every component depends on instead of a concrete
// LiveClock/TestClock, so backtest and live code share one code path.
type Clock interface {
	// TimestampNs returns the current time: OS wall-clock Unix time for LiveClock,
	// or the ts_init of the last advanced event for TestClock.
	TimestampNs() int64

	// SetTimeAlert schedules a one-shot Handler firing at atNs. Returns an
	// error if name is already registered on this clock.
	SetTimeAlert(name string, atNs int64, handler Handler) error

	// SetTimer schedules a recurring Handler firing every intervalNs,
	// starting at startNs and stopping at stopNs (0 means no stop).
	// Returns an error if name is already registered on this clock.
	SetTimer(name string, intervalNs int64, startNs int64, stopNs int64, handler Handler) error

	// CancelTimer removes a timer or alert by name. Idempotent: canceling an
	// unknown name is a no-op, never an error.
	CancelTimer(name string)

	// CancelAll removes every registered timer and alert. Idempotent.
	CancelAll()
}

// ErrDuplicateTimerName is returned by SetTimeAlert/SetTimer when name is
// already registered (timer names are unique within a component).
var ErrDuplicateTimerName = fmt.Errorf("timer name already registered")
