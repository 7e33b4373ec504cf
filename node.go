package flowmesh

import (
	"github.com/flowmesh/flowmesh/keyvalue"
	"github.com/flowmesh/flowmesh/packet"
)

// A Node is a unit of computation with named input and output ports.
//
// Process is invoked with the packets that arrived this tick, keyed by
// input port name. A port absent from inputs did not arrive this
// invocation; that is distinct from a port carrying a nil value and
// nodes must not conflate the two. Process returns the outputs to route,
// keyed by output port name. A nil output map routes nothing.
//
// Returning a *packet.ErrorResult as the error surfaces a structured,
// routable failure on the error channel; any other error (or a panic) is
// treated as unexpected and logged. In every case propagation halts at
// this node for this tick only.
type Node interface {
	Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error)
}

// An Initializer joins a running graph: it runs once after deploy,
// before any delivery. Trigger-capable nodes subscribe to the bus here.
type Initializer interface {
	Initialize(ctx *Context) error
}

// A Disposer leaves a running graph: it runs once when the node is
// removed and must release every timer and subscription the node
// created. An uncancelled repeating timer keeps firing indefinitely.
type Disposer interface {
	Dispose(ctx *Context)
}

// Diagnostic is the logging capability of a Runtime.
type Diagnostic interface {
	RuntimeOpened()
	RuntimeClosed()

	DeployingGraph(id string)
	DeployedGraph(id string, nodes, edges int)
	StoppedGraph(id string)

	Error(msg string, err error, ctx ...keyvalue.T)

	WithNodeContext(graph, node string) NodeDiagnostic
}

// NodeDiagnostic is the logging capability carried by a node's
// invocation context.
type NodeDiagnostic interface {
	Info(msg string, ctx ...keyvalue.T)
	Warn(msg string, ctx ...keyvalue.T)
	Error(msg string, err error, ctx ...keyvalue.T)

	// ErrorResult records a structured failure returned by Process.
	ErrorResult(res *packet.ErrorResult)
	// ProcessFailed records an unexpected error or recovered panic.
	ProcessFailed(traceID string, err error)
}
