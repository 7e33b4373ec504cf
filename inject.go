package flowmesh

import (
	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/trigger"
)

type injectConfig struct {
	Key string `mapstructure:"key"`
}

// InjectNode feeds trigger bus events into the graph. It subscribes on
// initialize and unsubscribes on dispose; every event starts a new
// causal chain. An empty key subscribes to every event.
type InjectNode struct {
	c injectConfig

	unsubscribe func()
}

func newInjectNode(settings map[string]interface{}) (Node, error) {
	var c injectConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	return &InjectNode{c: c}, nil
}

func (n *InjectNode) Initialize(ctx *Context) error {
	n.unsubscribe = ctx.Bus.Subscribe(n.c.Key, func(e trigger.Event) {
		ctx.Emit(map[string]*packet.Packet{
			"output": packet.New(map[string]interface{}{
				"key":       e.Key,
				"payload":   e.Payload,
				"timestamp": e.Time,
			}),
		})
	})
	return nil
}

func (n *InjectNode) Process(*Context, map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	// Purely bus driven; deliveries on input ports are ignored.
	return nil, nil
}

func (n *InjectNode) Dispose(*Context) {
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}
