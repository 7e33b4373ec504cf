package flowmesh

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/state"
)

// NodeSpec is one node entry of a deployment payload produced by the
// editor tooling. Position is editor-only and ignored by the core.
type NodeSpec struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"typeId"`
	Version  string                 `json:"version,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
	Position json.RawMessage        `json:"position,omitempty"`
}

// EdgeSpec routes one output port to one input port.
type EdgeSpec struct {
	ID             string `json:"id"`
	SourceNodeID   string `json:"sourceNodeId"`
	SourcePortName string `json:"sourcePortName"`
	TargetNodeID   string `json:"targetNodeId"`
	TargetPortName string `json:"targetPortName"`
}

// A Deployment is the complete definition of one graph.
type Deployment struct {
	ID       string                 `json:"id"`
	Nodes    []NodeSpec             `json:"nodes"`
	Edges    []EdgeSpec             `json:"edges"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the payload's referential integrity. Port-type
// compatibility is the editor's concern, not validated here.
func (d Deployment) Validate() error {
	if d.ID == "" {
		return errors.New("deployment has empty id")
	}
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return errors.New("node has empty id")
		}
		if n.Type == "" {
			return errors.Errorf("node %q has empty typeId", n.ID)
		}
		if ids[n.ID] {
			return errors.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range d.Edges {
		if !ids[e.SourceNodeID] {
			return errors.Errorf("edge %q references unknown source node %q", e.ID, e.SourceNodeID)
		}
		if !ids[e.TargetNodeID] {
			return errors.Errorf("edge %q references unknown target node %q", e.ID, e.TargetNodeID)
		}
		if e.SourcePortName == "" || e.TargetPortName == "" {
			return errors.Errorf("edge %q has empty port name", e.ID)
		}
	}
	return nil
}

type target struct {
	node *runner
	port string
}

// An ExecutingGraph is a deployed graph: node instances plus the
// routing table compiled from the edge list. It is not incrementally
// mutable; redeploying recompiles from scratch.
type ExecutingGraph struct {
	id    string
	rt    *Runtime
	edges []EdgeSpec

	runners map[string]*runner
	// order preserves the deployment payload order for initialize;
	// dispose walks it in reverse.
	order  []*runner
	routes map[string]map[string][]target
}

func compileGraph(rt *Runtime, d Deployment) (*ExecutingGraph, error) {
	g := &ExecutingGraph{
		id:      d.ID,
		rt:      rt,
		edges:   d.Edges,
		runners: make(map[string]*runner, len(d.Nodes)),
		routes:  make(map[string]map[string][]target),
	}
	for _, spec := range d.Nodes {
		def, ok := rt.Registry.Definition(spec.Type)
		if !ok {
			return nil, errors.Errorf("node %q has unknown type %q", spec.ID, spec.Type)
		}
		impl, err := def.Factory(spec.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "create node %q (type %s)", spec.ID, spec.Type)
		}
		rn := &runner{
			id:       spec.ID,
			typ:      spec.Type,
			impl:     impl,
			graph:    g,
			stateful: def.Stateful,
			diag:     rt.diag.WithNodeContext(d.ID, spec.ID),
		}
		g.runners[spec.ID] = rn
		g.order = append(g.order, rn)
	}
	for _, e := range d.Edges {
		src, ok := g.runners[e.SourceNodeID]
		if !ok {
			return nil, errors.Errorf("edge %q references unknown source node %q", e.ID, e.SourceNodeID)
		}
		dst, ok := g.runners[e.TargetNodeID]
		if !ok {
			return nil, errors.Errorf("edge %q references unknown target node %q", e.ID, e.TargetNodeID)
		}
		ports := g.routes[src.id]
		if ports == nil {
			ports = make(map[string][]target)
			g.routes[src.id] = ports
		}
		ports[e.SourcePortName] = append(ports[e.SourcePortName], target{node: dst, port: e.TargetPortName})
	}
	return g, nil
}

// ID returns the deployment id.
func (g *ExecutingGraph) ID() string {
	return g.id
}

// newContext builds the invocation context for one runner.
func (g *ExecutingGraph) newContext(rn *runner, traceID string) *Context {
	return &Context{
		GraphID:    g.id,
		NodeID:     rn.id,
		TraceID:    traceID,
		Clock:      g.rt.Clock,
		Diag:       rn.diag,
		State:      state.NewScope(g.rt.State, g.id+"/"+rn.id),
		Bus:        g.rt.Bus,
		Sessions:   g.rt.Sessions,
		emitFn:     rn.emit,
		scheduleFn: rn.schedule,
		repeatFn:   rn.repeat,
	}
}

// invoke runs one Process call on the dispatch loop.
func (g *ExecutingGraph) invoke(rn *runner, inputs map[string]*packet.Packet) {
	if rn.disposed {
		// The node left the graph after this delivery was queued.
		return
	}
	rn.addCollected(int64(len(inputs)))
	ctx := g.newContext(rn, traceOf(inputs))
	outputs, err := rn.process(ctx, inputs)
	if err != nil {
		rn.addError()
		if res, ok := err.(*packet.ErrorResult); ok {
			if res.NodeID == "" {
				res.NodeID = rn.id
			}
			if res.TraceID == "" {
				res.TraceID = ctx.TraceID
			}
			if res.Time.IsZero() {
				res.Time = g.rt.Clock.Now()
			}
			rn.diag.ErrorResult(res)
		} else {
			rn.diag.ProcessFailed(ctx.TraceID, err)
		}
		return
	}
	if len(outputs) > 0 {
		g.route(rn, outputs)
	}
}

// route delivers one output set: every populated port fans out along its
// edges, each downstream receives an independently cloned packet, and
// deliveries landing on the same target are coalesced into one
// invocation on the next tick.
func (g *ExecutingGraph) route(rn *runner, outputs map[string]*packet.Packet) {
	ports := g.routes[rn.id]
	byTarget := make(map[*runner]map[string]*packet.Packet)
	for _, port := range sortedPorts(outputs) {
		p := outputs[port]
		if p == nil {
			continue
		}
		rn.addEmitted(1)
		for _, t := range ports[port] {
			ins := byTarget[t.node]
			if ins == nil {
				ins = make(map[string]*packet.Packet)
				byTarget[t.node] = ins
			}
			ins[t.port] = p.CloneWith(p.Value, rn.id)
		}
	}
	for tn, ins := range byTarget {
		tn, ins := tn, ins
		g.rt.post(func() { g.invoke(tn, ins) })
	}
}

// traceOf picks the causal chain of an invocation: the trace of the
// first arriving input in port order, or a new root when the invocation
// has no upstream input.
func traceOf(inputs map[string]*packet.Packet) string {
	for _, port := range sortedPorts(inputs) {
		if p := inputs[port]; p != nil && p.TraceID != "" {
			return p.TraceID
		}
	}
	return packet.NewTraceID()
}

func sortedPorts(m map[string]*packet.Packet) []string {
	ports := make([]string, 0, len(m))
	for port := range m {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports
}

// Dot renders the graph in graphviz dot syntax.
func (g *ExecutingGraph) Dot() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", g.id)
	for _, rn := range g.order {
		fmt.Fprintf(&buf, "%s [label=\"%s\"];\n", rn.id, rn.typ)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&buf, "%s -> %s [label=\"%s->%s\"];\n",
			e.SourceNodeID, e.TargetNodeID, e.SourcePortName, e.TargetPortName)
	}
	buf.WriteString("}")
	return buf.Bytes()
}

// Stats reports per-node delivery counters.
func (g *ExecutingGraph) Stats() map[string]NodeStats {
	stats := make(map[string]NodeStats, len(g.order))
	for _, rn := range g.order {
		stats[rn.id] = rn.nodeStats()
	}
	return stats
}
