package flowmesh

import (
	"time"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

const (
	mergeShallow = "shallow"
	mergeNested  = "nested"
)

type enricherConfig struct {
	TTLMs         int64  `mapstructure:"ttlMs"`
	MergeStrategy string `mapstructure:"mergeStrategy"`
	EmitOnExpire  bool   `mapstructure:"emitOnExpire"`
}

// EnricherNode holds at most one pending primary value under a TTL. An
// enrichment arriving while a primary is pending merges the two and
// emits synchronously. If the TTL fires first the primary alone goes to
// the expired output (when configured) and a late enrichment is dropped.
// Exactly one of merged or expired fires per primary instance.
type EnricherNode struct {
	c enricherConfig

	// pending primary and its TTL deadline, confined to the dispatch
	// loop.
	pending *packet.Packet
	ttl     timer.Task
}

func newEnricherNode(settings map[string]interface{}) (Node, error) {
	c := enricherConfig{MergeStrategy: mergeShallow}
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.TTLMs <= 0 {
		return nil, errors.New("enricher: ttlMs must be positive")
	}
	if c.MergeStrategy != mergeShallow && c.MergeStrategy != mergeNested {
		return nil, errors.Errorf("enricher: unknown mergeStrategy %q", c.MergeStrategy)
	}
	return &EnricherNode{c: c}, nil
}

func (n *EnricherNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	if p, ok := inputs["primary"]; ok && p != nil {
		// A new primary replaces any pending one.
		n.cancelTTL()
		n.pending = p
		n.ttl = ctx.Schedule(time.Duration(n.c.TTLMs)*time.Millisecond, func() {
			n.ttl = nil
			expired := n.pending
			if expired == nil {
				return
			}
			n.pending = nil
			if n.c.EmitOnExpire {
				ctx.Emit(map[string]*packet.Packet{"expired": expired})
			}
		})
	}

	e, ok := inputs["enrichment"]
	if !ok || e == nil {
		return nil, nil
	}
	if n.pending == nil {
		// Expired or never primed: there is nothing left to merge with.
		return nil, nil
	}
	primary := n.pending
	n.pending = nil
	n.cancelTTL()
	merged := mergeValues(primary.Value, e.Value, n.c.MergeStrategy)
	return map[string]*packet.Packet{"output": primary.CloneWith(merged, ctx.NodeID)}, nil
}

func (n *EnricherNode) Dispose(*Context) {
	n.cancelTTL()
	n.pending = nil
}

func (n *EnricherNode) cancelTTL() {
	if n.ttl != nil {
		n.ttl.Cancel()
		n.ttl = nil
	}
}

// mergeValues combines a primary and an enrichment value. Shallow merge
// overlays enrichment fields onto primary fields when both are objects,
// and falls back to the nested wrap otherwise.
func mergeValues(primary, enrichment interface{}, strategy string) interface{} {
	if strategy == mergeShallow {
		pm, pok := primary.(map[string]interface{})
		em, eok := enrichment.(map[string]interface{})
		if pok && eok {
			merged := make(map[string]interface{}, len(pm)+len(em))
			for k, v := range pm {
				merged[k] = v
			}
			for k, v := range em {
				merged[k] = v
			}
			return merged
		}
	}
	return map[string]interface{}{
		"primary":    primary,
		"enrichment": enrichment,
	}
}
