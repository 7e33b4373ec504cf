package flowmesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/trigger"
)

func TestInjectEmitsBusEvents(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.bus.Open())
	n, err := newInjectNode(map[string]interface{}{"key": "alerts"})
	require.NoError(t, err)
	ctx := h.context("inj")

	require.NoError(t, n.(*InjectNode).Initialize(ctx))

	h.bus.Publish(trigger.Event{Key: "alerts", Payload: 42, Time: time.Unix(100, 0)})
	require.Len(t, h.emitted, 1)
	p := h.emitted[0]["output"]
	event := p.Value.(map[string]interface{})
	require.Equal(t, "alerts", event["key"])
	require.Equal(t, 42, event["payload"])
	require.Equal(t, time.Unix(100, 0), event["timestamp"])
	require.NotEmpty(t, p.TraceID)

	// Events for other keys are not delivered.
	h.bus.Publish(trigger.Event{Key: "other"})
	require.Len(t, h.emitted, 1)

	// Every event starts a fresh causal chain.
	h.bus.Publish(trigger.Event{Key: "alerts"})
	require.Len(t, h.emitted, 2)
	require.NotEqual(t, h.emitted[0]["output"].TraceID, h.emitted[1]["output"].TraceID)
}

func TestInjectWildcard(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.bus.Open())
	n, err := newInjectNode(nil)
	require.NoError(t, err)
	require.NoError(t, n.(*InjectNode).Initialize(h.context("inj")))

	h.bus.Publish(trigger.Event{Key: "a"})
	h.bus.Publish(trigger.Event{Key: "b"})
	require.Len(t, h.emitted, 2)
}

func TestInjectDisposeUnsubscribes(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.bus.Open())
	n, err := newInjectNode(map[string]interface{}{"key": "k"})
	require.NoError(t, err)
	ctx := h.context("inj")
	require.NoError(t, n.(*InjectNode).Initialize(ctx))
	require.Equal(t, 1, h.bus.Len())

	n.(*InjectNode).Dispose(ctx)
	require.Equal(t, 0, h.bus.Len())

	h.bus.Publish(trigger.Event{Key: "k"})
	require.Empty(t, h.emitted)
}
