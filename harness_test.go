package flowmesh

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/flowmesh/flowmesh/keyvalue"
	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/state"
	"github.com/flowmesh/flowmesh/timer"
	"github.com/flowmesh/flowmesh/trigger"
)

// testDiag records diagnostic calls for assertions.
type testDiag struct {
	mu            sync.Mutex
	errorResults  []*packet.ErrorResult
	processErrors []error
	errors        []error
}

func (d *testDiag) RuntimeOpened()                 {}
func (d *testDiag) RuntimeClosed()                 {}
func (d *testDiag) DeployingGraph(string)          {}
func (d *testDiag) DeployedGraph(string, int, int) {}
func (d *testDiag) StoppedGraph(string)            {}
func (d *testDiag) Error(_ string, err error, _ ...keyvalue.T) {
	d.mu.Lock()
	d.errors = append(d.errors, err)
	d.mu.Unlock()
}
func (d *testDiag) WithNodeContext(string, string) NodeDiagnostic { return d }

func (d *testDiag) Info(string, ...keyvalue.T) {}
func (d *testDiag) Warn(string, ...keyvalue.T) {}
func (d *testDiag) ErrorResult(res *packet.ErrorResult) {
	d.mu.Lock()
	d.errorResults = append(d.errorResults, res)
	d.mu.Unlock()
}
func (d *testDiag) ProcessFailed(_ string, err error) {
	d.mu.Lock()
	d.processErrors = append(d.processErrors, err)
	d.mu.Unlock()
}

func (d *testDiag) errorResultCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errorResults)
}

func (d *testDiag) processErrorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.processErrors)
}

// harness drives a single node directly: emissions are recorded, the
// clock is a mock, and scheduled callbacks fire inline on clock.Add.
type harness struct {
	mock     *clock.Mock
	adapter  *state.MemoryAdapter
	sessions *SessionStore
	bus      *trigger.Bus
	diag     *testDiag

	emitted []map[string]*packet.Packet
}

func newHarness() *harness {
	return &harness{
		mock:     clock.NewMock(),
		adapter:  state.NewMemoryAdapter(),
		sessions: NewSessionStore(),
		bus:      trigger.NewBus(),
		diag:     &testDiag{},
	}
}

func (h *harness) context(nodeID string) *Context {
	return &Context{
		GraphID:  "test",
		NodeID:   nodeID,
		Clock:    h.mock,
		Diag:     h.diag,
		State:    state.NewScope(h.adapter, nodeID),
		Bus:      h.bus,
		Sessions: h.sessions,
		emitFn: func(outputs map[string]*packet.Packet) {
			h.emitted = append(h.emitted, outputs)
		},
		scheduleFn: func(d time.Duration, f func()) timer.Task {
			return timer.NewDeadline(h.mock, d, f)
		},
		repeatFn: func(d time.Duration, f func()) timer.Task {
			return timer.NewInterval(h.mock, d, f)
		},
	}
}

func in(port string, p *packet.Packet) map[string]*packet.Packet {
	return map[string]*packet.Packet{port: p}
}
