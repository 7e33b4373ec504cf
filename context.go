package flowmesh

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/state"
	"github.com/flowmesh/flowmesh/timer"
	"github.com/flowmesh/flowmesh/trigger"
)

// Context carries the cross-cutting data for one node invocation: the
// trace it belongs to, the clock, the node's diagnostic, its state scope
// and the runtime services. A fresh Context is built per invocation, but
// Emit and Schedule stay valid afterwards so callbacks armed during one
// invocation may fire long after it returned.
type Context struct {
	GraphID string
	NodeID  string
	// TraceID of the causal chain that triggered this invocation.
	// Empty during Initialize and Dispose.
	TraceID string

	Clock clock.Clock
	Diag  NodeDiagnostic
	// State is the node's scope on the runtime's state adapter.
	State state.Scope
	// Bus is the runtime's trigger bus.
	Bus *trigger.Bus
	// Sessions is the runtime's scatter/gather session table.
	Sessions *SessionStore

	emitFn     func(outputs map[string]*packet.Packet)
	scheduleFn func(d time.Duration, f func()) timer.Task
	repeatFn   func(d time.Duration, f func()) timer.Task
}

// Now returns the current time on the runtime clock.
func (c *Context) Now() time.Time {
	return c.Clock.Now()
}

// Emit routes outputs exactly as a Process return value would be
// routed. It may be called from any goroutine, zero or many times,
// independent of invocation count. After the node is disposed Emit is a
// no-op.
func (c *Context) Emit(outputs map[string]*packet.Packet) {
	c.emitFn(outputs)
}

// Schedule arms f to run once, d from now, on the runtime's dispatch
// loop. The returned task must be cancelled in Dispose if still pending.
func (c *Context) Schedule(d time.Duration, f func()) timer.Task {
	return c.scheduleFn(d, f)
}

// Repeat arms f to run every d on the runtime's dispatch loop until the
// returned task is cancelled.
func (c *Context) Repeat(d time.Duration, f func()) timer.Task {
	return c.repeatFn(d, f)
}
