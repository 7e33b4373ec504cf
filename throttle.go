package flowmesh

import (
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
)

type throttleConfig struct {
	IntervalMs int64 `mapstructure:"intervalMs"`
}

// ThrottleNode is a leading-edge gate: the first value of a window
// passes synchronously, later arrivals within intervalMs are routed to
// the dropped output, never queued for the next window.
type ThrottleNode struct {
	c throttleConfig
}

func newThrottleNode(settings map[string]interface{}) (Node, error) {
	var c throttleConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.IntervalMs <= 0 {
		return nil, errors.New("throttle: intervalMs must be positive")
	}
	return &ThrottleNode{c: c}, nil
}

func (n *ThrottleNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	in, ok := inputs["input"]
	if !ok || in == nil {
		return nil, nil
	}
	now := ctx.Now()
	v, ok, err := ctx.State.Get("lastPassedAt")
	if err != nil {
		return nil, errors.Wrap(err, "throttle: read state")
	}
	if ok {
		last, valid := asMillis(v)
		if valid && now.UnixMilli()-last < n.c.IntervalMs {
			return map[string]*packet.Packet{"dropped": in}, nil
		}
	}
	if err := ctx.State.Set("lastPassedAt", now.UnixMilli()); err != nil {
		return nil, errors.Wrap(err, "throttle: write state")
	}
	return map[string]*packet.Packet{"output": in}, nil
}

// asMillis reads a unix-millisecond stamp regardless of whether the
// adapter returned it typed or as a JSON number.
func asMillis(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
