package flowmesh

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

// A runner wraps one node instance inside an executing graph. Its
// disposed flag is confined to the dispatch loop.
type runner struct {
	id       string
	typ      string
	impl     Node
	graph    *ExecutingGraph
	diag     NodeDiagnostic
	stateful bool
	disposed bool

	collected int64
	emitted   int64
	errs      int64
}

// NodeStats are the delivery counters of one node instance.
type NodeStats struct {
	NodeID    string `json:"nodeId"`
	Type      string `json:"type"`
	Collected int64  `json:"collected"`
	Emitted   int64  `json:"emitted"`
	Errors    int64  `json:"errors"`
}

func (rn *runner) addCollected(n int64) { atomic.AddInt64(&rn.collected, n) }
func (rn *runner) addEmitted(n int64)   { atomic.AddInt64(&rn.emitted, n) }
func (rn *runner) addError()            { atomic.AddInt64(&rn.errs, 1) }

func (rn *runner) nodeStats() NodeStats {
	return NodeStats{
		NodeID:    rn.id,
		Type:      rn.typ,
		Collected: atomic.LoadInt64(&rn.collected),
		Emitted:   atomic.LoadInt64(&rn.emitted),
		Errors:    atomic.LoadInt64(&rn.errs),
	}
}

// process calls the node implementation, converting a panic into an
// error at the invocation boundary so a misbehaving node cannot crash
// the runtime.
func (rn *runner) process(ctx *Context, inputs map[string]*packet.Packet) (outputs map[string]*packet.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace := make([]byte, 512)
			n := runtime.Stack(trace, false)
			err = errors.Errorf("node panic: %v\n%s", r, trace[:n])
		}
	}()
	return rn.impl.Process(ctx, inputs)
}

// emit routes outputs from any goroutine; delivery happens on the
// dispatch loop and is dropped if the node has been disposed meanwhile.
func (rn *runner) emit(outputs map[string]*packet.Packet) {
	rn.graph.rt.post(func() {
		if rn.disposed {
			return
		}
		rn.graph.route(rn, outputs)
	})
}

// schedule arms a single-shot callback on the dispatch loop.
func (rn *runner) schedule(d time.Duration, f func()) timer.Task {
	return timer.NewDeadline(rn.graph.rt.Clock, d, func() {
		rn.graph.rt.post(func() {
			if rn.disposed {
				return
			}
			f()
		})
	})
}

// repeat arms a repeating callback on the dispatch loop.
func (rn *runner) repeat(d time.Duration, f func()) timer.Task {
	return timer.NewInterval(rn.graph.rt.Clock, d, func() {
		rn.graph.rt.post(func() {
			if rn.disposed {
				return
			}
			f()
		})
	})
}
