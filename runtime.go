package flowmesh

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/state"
	"github.com/flowmesh/flowmesh/trigger"
)

var (
	ErrRuntimeClosed  = errors.New("runtime is closed")
	ErrRuntimeNotOpen = errors.New("runtime is not open")
	ErrRuntimeOpen    = errors.New("runtime is open")
)

// Runtime executes deployed graphs. All node invocations, emit
// deliveries and timer callbacks run one at a time on a single dispatch
// goroutine; they interleave arbitrarily relative to the wall-clock
// arrival of external events, but never overlap.
//
// The exported service fields may be replaced between NewRuntime and
// Open, never after.
type Runtime struct {
	// Clock drives every deadline and interval; tests inject a mock.
	Clock clock.Clock
	// State is the adapter backing stateful nodes. The default keeps
	// state in process memory; a multi-process deployment must supply a
	// shared adapter or stateful nodes only observe the subset of
	// events reaching their own process.
	State state.Adapter
	// Bus is the runtime's trigger bus.
	Bus *trigger.Bus
	// Registry resolves deployment type ids; builtins are pre-registered.
	Registry *Registry
	// Sessions is the shared scatter/gather session table.
	Sessions *SessionStore

	diag Diagnostic

	mu     sync.Mutex
	graphs map[string]*ExecutingGraph
	opened bool
	closed bool

	qmu      sync.Mutex
	qcond    *sync.Cond
	queue    []func()
	stopping bool
	done     chan struct{}
}

func NewRuntime(d Diagnostic) *Runtime {
	r := &Runtime{
		Clock:    clock.New(),
		State:    state.NewMemoryAdapter(),
		Bus:      trigger.NewBus(),
		Registry: NewRegistry(),
		Sessions: NewSessionStore(),
		diag:     d,
		graphs:   make(map[string]*ExecutingGraph),
		done:     make(chan struct{}),
	}
	r.qcond = sync.NewCond(&r.qmu)
	// A fresh registry cannot collide with the builtin types.
	_ = r.Registry.RegisterBuiltins()
	return r
}

// Open starts the dispatch loop.
func (r *Runtime) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	if r.opened {
		return ErrRuntimeOpen
	}
	r.opened = true
	if err := r.Bus.Open(); err != nil {
		return errors.Wrap(err, "open trigger bus")
	}
	go r.run()
	r.diag.RuntimeOpened()
	return nil
}

// Close stops every deployed graph, drains the dispatch loop and shuts
// the bus. Close is idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed || !r.opened {
		r.closed = true
		r.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.StopGraph(id); err != nil {
			r.diag.Error("error stopping graph during close", err)
		}
	}

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.qmu.Lock()
	r.stopping = true
	r.qcond.Broadcast()
	r.qmu.Unlock()
	<-r.done

	if err := r.Bus.Close(); err != nil {
		return errors.Wrap(err, "close trigger bus")
	}
	r.diag.RuntimeClosed()
	return nil
}

// run is the dispatch loop: it drains queued work one task at a time,
// then exits once stopped and empty.
func (r *Runtime) run() {
	for {
		r.qmu.Lock()
		for len(r.queue) == 0 && !r.stopping {
			r.qcond.Wait()
		}
		if len(r.queue) == 0 {
			r.qmu.Unlock()
			close(r.done)
			return
		}
		f := r.queue[0]
		r.queue = r.queue[1:]
		r.qmu.Unlock()
		f()
	}
}

// post enqueues f onto the dispatch loop. It never blocks, so it is
// safe to call from the loop itself, from timer goroutines and from bus
// handlers. Work posted after Close is dropped.
func (r *Runtime) post(f func()) bool {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	if r.stopping {
		return false
	}
	r.queue = append(r.queue, f)
	r.qcond.Signal()
	return true
}

// doSync runs f on the dispatch loop and waits for it to finish. Must
// not be called from the loop.
func (r *Runtime) doSync(f func()) error {
	done := make(chan struct{})
	if !r.post(func() {
		f()
		close(done)
	}) {
		return ErrRuntimeClosed
	}
	<-done
	return nil
}

// Drain waits until all currently queued work has executed. Intended
// for tests that need the loop to settle.
func (r *Runtime) Drain() {
	_ = r.doSync(func() {})
}

// Deploy compiles and starts a graph. Node settings become the
// instances' immutable config; changing a deployed graph means stopping
// it and deploying the new payload.
func (r *Runtime) Deploy(d Deployment) (*ExecutingGraph, error) {
	if err := d.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid deployment %q", d.ID)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRuntimeClosed
	}
	if !r.opened {
		r.mu.Unlock()
		return nil, ErrRuntimeNotOpen
	}
	if _, ok := r.graphs[d.ID]; ok {
		r.mu.Unlock()
		return nil, errors.Errorf("graph %q is already deployed", d.ID)
	}
	r.mu.Unlock()

	r.diag.DeployingGraph(d.ID)
	g, err := compileGraph(r, d)
	if err != nil {
		return nil, errors.Wrapf(err, "compile graph %q", d.ID)
	}

	r.mu.Lock()
	r.graphs[d.ID] = g
	r.mu.Unlock()

	var initErr error
	if err := r.doSync(func() {
		initErr = g.initialize()
	}); err != nil {
		initErr = err
	}
	if initErr != nil {
		_ = r.StopGraph(d.ID)
		return nil, errors.Wrapf(initErr, "initialize graph %q", d.ID)
	}

	r.diag.DeployedGraph(d.ID, len(d.Nodes), len(d.Edges))
	return g, nil
}

// StopGraph disposes every node of the graph in reverse deployment
// order and removes its routing table. An in-flight invocation is
// allowed to finish; its deliveries then drop silently.
func (r *Runtime) StopGraph(id string) error {
	r.mu.Lock()
	g, ok := r.graphs[id]
	if !ok {
		r.mu.Unlock()
		return errors.Errorf("unknown graph %q", id)
	}
	delete(r.graphs, id)
	r.mu.Unlock()

	if err := r.doSync(g.dispose); err != nil {
		return err
	}
	r.diag.StoppedGraph(id)
	return nil
}

// Redeploy replaces a graph wholesale: stop (if deployed), recompile,
// start.
func (r *Runtime) Redeploy(d Deployment) (*ExecutingGraph, error) {
	r.mu.Lock()
	_, ok := r.graphs[d.ID]
	r.mu.Unlock()
	if ok {
		if err := r.StopGraph(d.ID); err != nil {
			return nil, err
		}
	}
	return r.Deploy(d)
}

// Graph returns a deployed graph by id.
func (r *Runtime) Graph(id string) (*ExecutingGraph, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.graphs[id]
	return g, ok
}

// initialize runs on the dispatch loop.
func (g *ExecutingGraph) initialize() error {
	for i, rn := range g.order {
		ini, ok := rn.impl.(Initializer)
		if !ok {
			continue
		}
		if err := ini.Initialize(g.newContext(rn, "")); err != nil {
			// Unwind the nodes already initialized.
			for j := i - 1; j >= 0; j-- {
				g.order[j].disposed = true
				if disp, ok := g.order[j].impl.(Disposer); ok {
					disp.Dispose(g.newContext(g.order[j], ""))
				}
			}
			return errors.Wrapf(err, "node %q", rn.id)
		}
	}
	return nil
}

// dispose runs on the dispatch loop.
func (g *ExecutingGraph) dispose() {
	for i := len(g.order) - 1; i >= 0; i-- {
		rn := g.order[i]
		if rn.disposed {
			continue
		}
		rn.disposed = true
		if disp, ok := rn.impl.(Disposer); ok {
			disp.Dispose(g.newContext(rn, ""))
		}
	}
}
