package flowmesh

import (
	"time"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

const (
	timeoutRelease = "release"
	timeoutDrop    = "drop"
)

type barrierConfig struct {
	Channels   []string `mapstructure:"channels"`
	Optional   []string `mapstructure:"optional"`
	TimeoutSec int64    `mapstructure:"timeoutSec"`
	OnTimeout  string   `mapstructure:"onTimeout"`
}

// BarrierNode buffers values per named channel until every required
// channel holds one, then releases them together and resets for the
// next round. An optional channel joins the release set only for rounds
// in which it received a value. On timeout a partial round is either
// released with missing channels as null, or dropped silently.
type BarrierNode struct {
	c barrierConfig

	// round state, confined to the dispatch loop.
	buffered map[string]*packet.Packet
	deadline timer.Task
}

func newBarrierNode(settings map[string]interface{}) (Node, error) {
	c := barrierConfig{OnTimeout: timeoutRelease}
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if len(c.Channels) == 0 {
		return nil, errors.New("barrier: at least one required channel")
	}
	if c.OnTimeout != timeoutRelease && c.OnTimeout != timeoutDrop {
		return nil, errors.Errorf("barrier: unknown onTimeout %q", c.OnTimeout)
	}
	return &BarrierNode{c: c, buffered: make(map[string]*packet.Packet)}, nil
}

func (n *BarrierNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	var last *packet.Packet
	for _, ch := range append(n.c.Channels, n.c.Optional...) {
		if p, ok := inputs[ch]; ok && p != nil {
			n.buffered[ch] = p
			last = p
		}
	}
	if last == nil {
		// No recognized channel arrived; inputs on unknown ports are
		// ignored rather than failing the graph.
		return nil, nil
	}

	if n.deadline == nil && n.c.TimeoutSec > 0 {
		n.deadline = ctx.Schedule(time.Duration(n.c.TimeoutSec)*time.Second, func() {
			n.deadline = nil
			if len(n.buffered) == 0 {
				return
			}
			if n.c.OnTimeout == timeoutDrop {
				n.buffered = make(map[string]*packet.Packet)
				return
			}
			released := n.release(false)
			ctx.Emit(map[string]*packet.Packet{"output": released})
		})
	}

	for _, ch := range n.c.Channels {
		if _, ok := n.buffered[ch]; !ok {
			return nil, nil
		}
	}
	released := n.release(true)
	return map[string]*packet.Packet{"output": last.CloneWith(released.Value, ctx.NodeID)}, nil
}

// release assembles the round's values, missing required channels as
// nil, and resets the round. A complete release also lists unseen
// optional channels as nil; a timeout release only carries what the
// round actually involved. The returned packet rides the causal chain
// of the first buffered value.
func (n *BarrierNode) release(complete bool) *packet.Packet {
	if n.deadline != nil {
		n.deadline.Cancel()
		n.deadline = nil
	}
	values := make(map[string]interface{}, len(n.c.Channels)+len(n.c.Optional))
	var carrier *packet.Packet
	for _, ch := range n.c.Channels {
		values[ch] = nil
		if p, ok := n.buffered[ch]; ok {
			values[ch] = p.Value
			if carrier == nil {
				carrier = p
			}
		}
	}
	for _, ch := range n.c.Optional {
		p, ok := n.buffered[ch]
		if ok {
			values[ch] = p.Value
			if carrier == nil {
				carrier = p
			}
		} else if complete {
			values[ch] = nil
		}
	}
	n.buffered = make(map[string]*packet.Packet)
	if carrier == nil {
		carrier = packet.New(nil)
	}
	return carrier.CloneWith(values, carrier.ProducerID)
}

func (n *BarrierNode) Dispose(*Context) {
	if n.deadline != nil {
		n.deadline.Cancel()
		n.deadline = nil
	}
	n.buffered = nil
}
