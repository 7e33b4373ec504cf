package flowmesh

import (
	"encoding/base64"
	"time"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

type debounceConfig struct {
	WaitMs int64 `mapstructure:"waitMs"`
}

// DebounceNode emits only the final value of a burst: each arrival
// cancels the pending deadline, stores the latest packet and arms a new
// deadline waitMs out. Output is always asynchronous.
type DebounceNode struct {
	c debounceConfig

	// pending deadline, confined to the dispatch loop.
	pending timer.Task
}

func newDebounceNode(settings map[string]interface{}) (Node, error) {
	var c debounceConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.WaitMs <= 0 {
		return nil, errors.New("debounce: waitMs must be positive")
	}
	return &DebounceNode{c: c}, nil
}

func (n *DebounceNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	in, ok := inputs["input"]
	if !ok || in == nil {
		return nil, nil
	}
	if n.pending != nil {
		n.pending.Cancel()
	}
	if err := ctx.State.Set("latest", in); err != nil {
		return nil, errors.Wrap(err, "debounce: store latest")
	}
	n.pending = ctx.Schedule(time.Duration(n.c.WaitMs)*time.Millisecond, func() {
		n.pending = nil
		v, ok, err := ctx.State.Get("latest")
		if err != nil || !ok {
			// Nothing buffered: the node was reset or disposed.
			return
		}
		_ = ctx.State.Delete("latest")
		if p, ok := asPacket(v); ok {
			ctx.Emit(map[string]*packet.Packet{"output": p})
		}
	})
	return nil, nil
}

// asPacket recovers a stored packet regardless of whether the adapter
// returned it typed or in its JSON form.
func asPacket(v interface{}) (*packet.Packet, bool) {
	switch t := v.(type) {
	case *packet.Packet:
		return t, true
	case map[string]interface{}:
		p := &packet.Packet{Value: t["value"]}
		if s, ok := t["traceId"].(string); ok {
			p.TraceID = s
		}
		if s, ok := t["producerId"].(string); ok {
			p.ProducerID = s
		}
		if s, ok := t["binary"].(string); ok {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				p.Binary = b
			}
		}
		return p, true
	default:
		return nil, false
	}
}

func (n *DebounceNode) Dispose(ctx *Context) {
	if n.pending != nil {
		n.pending.Cancel()
		n.pending = nil
	}
	_ = ctx.State.Delete("latest")
}
