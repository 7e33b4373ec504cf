package flowmesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/packet"
)

func TestCooldownGate(t *testing.T) {
	h := newHarness()
	n, err := newCooldownNode(map[string]interface{}{"cooldownMs": 5000})
	require.NoError(t, err)
	ctx := h.context("cd")

	// First input always passes.
	out, err := n.Process(ctx, in("input", packet.New("a")))
	require.NoError(t, err)
	require.NotNil(t, out["output"])

	// 2000ms later: blocked with remaining ~3000ms.
	h.mock.Add(2000 * time.Millisecond)
	out, err = n.Process(ctx, in("input", packet.New("b")))
	require.NoError(t, err)
	require.Nil(t, out["output"])
	blocked := out["blocked"].Value.(map[string]interface{})
	require.Equal(t, "b", blocked["value"])
	require.Equal(t, int64(3000), blocked["remainingMs"])

	// After the window a pass re-opens a fresh window.
	h.mock.Add(3000 * time.Millisecond)
	out, err = n.Process(ctx, in("input", packet.New("c")))
	require.NoError(t, err)
	require.NotNil(t, out["output"])
}

func TestCooldownReset(t *testing.T) {
	h := newHarness()
	n, err := newCooldownNode(map[string]interface{}{"cooldownMs": 5000})
	require.NoError(t, err)
	ctx := h.context("cd")

	_, err = n.Process(ctx, in("input", packet.New("a")))
	require.NoError(t, err)

	// Reset clears the window regardless of elapsed time.
	h.mock.Add(time.Millisecond)
	_, err = n.Process(ctx, in("reset", packet.New(nil)))
	require.NoError(t, err)

	out, err := n.Process(ctx, in("input", packet.New("b")))
	require.NoError(t, err)
	require.NotNil(t, out["output"], "reset re-opens the gate for the next input")
}

func TestCooldownResetAndInputSameTick(t *testing.T) {
	h := newHarness()
	n, err := newCooldownNode(map[string]interface{}{"cooldownMs": 5000})
	require.NoError(t, err)
	ctx := h.context("cd")

	_, err = n.Process(ctx, in("input", packet.New("a")))
	require.NoError(t, err)

	out, err := n.Process(ctx, map[string]*packet.Packet{
		"reset": packet.New(nil),
		"input": packet.New("b"),
	})
	require.NoError(t, err)
	require.NotNil(t, out["output"], "reset applies before the input of the same tick")
}

func TestCooldownIsTimeDependent(t *testing.T) {
	h := newHarness()
	n, err := newCooldownNode(map[string]interface{}{"cooldownMs": 1000})
	require.NoError(t, err)
	ctx := h.context("cd")

	p := packet.New("same")
	first, err := n.Process(ctx, in("input", p))
	require.NoError(t, err)
	second, err := n.Process(ctx, in("input", p))
	require.NoError(t, err)

	// Same input, different outcome: the gate is time sensitive.
	require.NotNil(t, first["output"])
	require.NotNil(t, second["blocked"])
}
