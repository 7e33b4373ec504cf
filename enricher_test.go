package flowmesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/packet"
)

func TestEnricherMergesBeforeTTL(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{
		"ttlMs":        5000,
		"emitOnExpire": true,
	})
	require.NoError(t, err)
	ctx := h.context("enr")

	prim := packet.New(map[string]interface{}{"id": 7, "name": "x"})
	out, err := n.Process(ctx, in("primary", prim))
	require.NoError(t, err)
	require.Nil(t, out)

	h.mock.Add(3000 * time.Millisecond)
	out, err = n.Process(ctx, in("enrichment", packet.New(map[string]interface{}{"name": "y", "extra": true})))
	require.NoError(t, err)
	merged := out["output"].Value.(map[string]interface{})
	require.Equal(t, 7, merged["id"])
	require.Equal(t, "y", merged["name"], "enrichment fields overlay primary fields")
	require.Equal(t, true, merged["extra"])
	require.Equal(t, prim.TraceID, out["output"].TraceID)

	// Exactly one of merged/expired per primary: no expiry later.
	h.mock.Add(time.Minute)
	require.Empty(t, h.emitted)
}

func TestEnricherExpires(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{
		"ttlMs":        5000,
		"emitOnExpire": true,
	})
	require.NoError(t, err)
	ctx := h.context("enr")

	_, err = n.Process(ctx, in("primary", packet.New("lonely")))
	require.NoError(t, err)

	h.mock.Add(4999 * time.Millisecond)
	require.Empty(t, h.emitted)

	h.mock.Add(1 * time.Millisecond)
	require.Len(t, h.emitted, 1)
	require.Equal(t, "lonely", h.emitted[0]["expired"].Value)

	// An enrichment after expiry has nothing to merge with.
	out, err := n.Process(ctx, in("enrichment", packet.New("late")))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEnricherExpiryCanBeSilent(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{"ttlMs": 100})
	require.NoError(t, err)
	ctx := h.context("enr")

	_, err = n.Process(ctx, in("primary", packet.New("p")))
	require.NoError(t, err)
	h.mock.Add(time.Second)
	require.Empty(t, h.emitted, "without emitOnExpire the primary is dropped silently")
}

func TestEnricherNewPrimaryReplacesPending(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{
		"ttlMs":        1000,
		"emitOnExpire": true,
	})
	require.NoError(t, err)
	ctx := h.context("enr")

	_, err = n.Process(ctx, in("primary", packet.New("old")))
	require.NoError(t, err)
	h.mock.Add(900 * time.Millisecond)
	_, err = n.Process(ctx, in("primary", packet.New("new")))
	require.NoError(t, err)

	// The old TTL was re-armed: nothing fires at the old deadline.
	h.mock.Add(900 * time.Millisecond)
	require.Empty(t, h.emitted)

	h.mock.Add(100 * time.Millisecond)
	require.Len(t, h.emitted, 1)
	require.Equal(t, "new", h.emitted[0]["expired"].Value)
}

func TestEnricherNestedStrategy(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{
		"ttlMs":         1000,
		"mergeStrategy": "nested",
	})
	require.NoError(t, err)
	ctx := h.context("enr")

	_, err = n.Process(ctx, in("primary", packet.New("p")))
	require.NoError(t, err)
	out, err := n.Process(ctx, in("enrichment", packet.New("e")))
	require.NoError(t, err)

	require.Equal(t, map[string]interface{}{"primary": "p", "enrichment": "e"}, out["output"].Value)
}

func TestEnricherShallowFallsBackToWrap(t *testing.T) {
	h := newHarness()
	n, err := newEnricherNode(map[string]interface{}{"ttlMs": 1000})
	require.NoError(t, err)
	ctx := h.context("enr")

	// Non-object values cannot be field-merged.
	_, err = n.Process(ctx, in("primary", packet.New(1)))
	require.NoError(t, err)
	out, err := n.Process(ctx, in("enrichment", packet.New(2)))
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"primary": 1, "enrichment": 2}, out["output"].Value)
}

func TestEnricherConfig(t *testing.T) {
	_, err := newEnricherNode(map[string]interface{}{"ttlMs": 0})
	require.Error(t, err)

	_, err = newEnricherNode(map[string]interface{}{"ttlMs": 10, "mergeStrategy": "deep"})
	require.Error(t, err)
}
