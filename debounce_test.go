package flowmesh

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/state"
)

func TestDebounceEmitsLastOfBurst(t *testing.T) {
	h := newHarness()
	n, err := newDebounceNode(map[string]interface{}{"waitMs": 100})
	require.NoError(t, err)
	ctx := h.context("deb")

	root := packet.New("a")
	for i, v := range []string{"a", "b", "c"} {
		out, err := n.Process(ctx, in("input", root.CloneWith(v, "src")))
		require.NoError(t, err)
		require.Nil(t, out, "debounce output must never be synchronous")
		if i < 2 {
			h.mock.Add(50 * time.Millisecond) // within the wait window
		}
	}

	// 99ms after the last arrival nothing has fired yet.
	h.mock.Add(99 * time.Millisecond)
	require.Empty(t, h.emitted)

	h.mock.Add(1 * time.Millisecond)
	require.Len(t, h.emitted, 1, "exactly one emission per burst")
	p := h.emitted[0]["output"]
	require.NotNil(t, p)
	require.Equal(t, "c", p.Value, "only the final value of the burst is emitted")
	require.Equal(t, root.TraceID, p.TraceID)

	// The burst is done; no further emission.
	h.mock.Add(time.Second)
	require.Len(t, h.emitted, 1)
}

func TestDebounceSeparateBursts(t *testing.T) {
	h := newHarness()
	n, err := newDebounceNode(map[string]interface{}{"waitMs": 100})
	require.NoError(t, err)
	ctx := h.context("deb")

	_, err = n.Process(ctx, in("input", packet.New("x")))
	require.NoError(t, err)
	h.mock.Add(100 * time.Millisecond)

	_, err = n.Process(ctx, in("input", packet.New("y")))
	require.NoError(t, err)
	h.mock.Add(100 * time.Millisecond)

	require.Len(t, h.emitted, 2)
	require.Equal(t, "x", h.emitted[0]["output"].Value)
	require.Equal(t, "y", h.emitted[1]["output"].Value)
}

func TestDebounceDisposeCancelsPending(t *testing.T) {
	h := newHarness()
	n, err := newDebounceNode(map[string]interface{}{"waitMs": 100})
	require.NoError(t, err)
	ctx := h.context("deb")

	_, err = n.Process(ctx, in("input", packet.New("x")))
	require.NoError(t, err)

	n.(*DebounceNode).Dispose(ctx)
	h.mock.Add(time.Second)
	require.Empty(t, h.emitted, "emit after dispose must be a no-op")
}

func TestDebounceIgnoresMissingInput(t *testing.T) {
	h := newHarness()
	n, err := newDebounceNode(map[string]interface{}{"waitMs": 100})
	require.NoError(t, err)

	out, err := n.Process(h.context("deb"), map[string]*packet.Packet{})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestDebounceStateSurvivesJSONRoundTrip(t *testing.T) {
	// A durable adapter hands the buffered packet back in its JSON form,
	// not as a *packet.Packet.
	h := newHarness()
	bolt, err := state.OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer bolt.Close()

	n, err := newDebounceNode(map[string]interface{}{"waitMs": 100})
	require.NoError(t, err)
	ctx := h.context("deb")
	ctx.State = state.NewScope(bolt, "deb")

	p := packet.New(map[string]interface{}{"city": "osaka"})
	_, err = n.Process(ctx, in("input", p))
	require.NoError(t, err)

	h.mock.Add(100 * time.Millisecond)
	require.Len(t, h.emitted, 1)
	out := h.emitted[0]["output"]
	require.Equal(t, p.TraceID, out.TraceID)
	value := out.Value.(map[string]interface{})
	require.Equal(t, "osaka", value["city"])
}

func TestDebounceConfig(t *testing.T) {
	_, err := newDebounceNode(map[string]interface{}{"waitMs": 0})
	require.Error(t, err)

	_, err = newDebounceNode(map[string]interface{}{"waitMs": 10, "bogus": true})
	require.Error(t, err, "unrecognized option names are rejected at compile time")
}
