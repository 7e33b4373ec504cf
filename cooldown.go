package flowmesh

import (
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
)

type cooldownConfig struct {
	CooldownMs int64 `mapstructure:"cooldownMs"`
}

// CooldownNode passes a value only when the previous pass is at least
// cooldownMs in the past; earlier arrivals go to the blocked output with
// the remaining time attached. A reset input re-opens the gate
// unconditionally. The window survives a node restart when the runtime
// uses a durable state adapter.
type CooldownNode struct {
	c cooldownConfig
}

func newCooldownNode(settings map[string]interface{}) (Node, error) {
	var c cooldownConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.CooldownMs <= 0 {
		return nil, errors.New("cooldown: cooldownMs must be positive")
	}
	return &CooldownNode{c: c}, nil
}

func (n *CooldownNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	if _, ok := inputs["reset"]; ok {
		if err := ctx.State.Delete("lastTriggerTime"); err != nil {
			return nil, errors.Wrap(err, "cooldown: clear state")
		}
	}
	in, ok := inputs["input"]
	if !ok || in == nil {
		return nil, nil
	}

	now := ctx.Now()
	v, ok, err := ctx.State.Get("lastTriggerTime")
	if err != nil {
		return nil, errors.Wrap(err, "cooldown: read state")
	}
	if ok {
		last, valid := asMillis(v)
		if valid {
			elapsed := now.UnixMilli() - last
			if elapsed < n.c.CooldownMs {
				blocked := map[string]interface{}{
					"value":       in.Value,
					"remainingMs": n.c.CooldownMs - elapsed,
				}
				return map[string]*packet.Packet{"blocked": in.CloneWith(blocked, ctx.NodeID)}, nil
			}
		}
	}
	if err := ctx.State.Set("lastTriggerTime", now.UnixMilli()); err != nil {
		return nil, errors.Wrap(err, "cooldown: write state")
	}
	return map[string]*packet.Packet{"output": in}, nil
}
