package flowmesh

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
)

// A CollectItem tags one element of a scattered array so its result can
// be reassembled at the original index, regardless of completion order.
type CollectItem struct {
	SessionKey string      `json:"sessionKey" mapstructure:"sessionKey"`
	Index      int         `json:"index" mapstructure:"index"`
	Total      int         `json:"total" mapstructure:"total"`
	IsLast     bool        `json:"isLast" mapstructure:"isLast"`
	Value      interface{} `json:"value" mapstructure:"value"`
}

type collectorInitConfig struct {
	SessionKey string `mapstructure:"sessionKey"`
}

// CollectorInitNode fans one array input into one tagged item per tick,
// each released by a downstream acknowledgement on the next port, so
// every item may traverse its own asynchronous sub-pipeline before the
// following one starts.
type CollectorInitNode struct {
	c collectorInitConfig

	// current run, confined to the dispatch loop.
	items   []interface{}
	cursor  int
	carrier *packet.Packet
}

func newCollectorInitNode(settings map[string]interface{}) (Node, error) {
	var c collectorInitConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.SessionKey == "" {
		return nil, errors.New("collector-init: sessionKey is required")
	}
	return &CollectorInitNode{c: c}, nil
}

func (n *CollectorInitNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	if in, ok := inputs["items"]; ok && in != nil {
		items, ok := in.Value.([]interface{})
		if !ok || len(items) == 0 {
			// Malformed or empty input yields no output rather than
			// halting the graph.
			return nil, nil
		}
		n.items = items
		n.cursor = 0
		n.carrier = in
		return n.emitNext(ctx), nil
	}
	if _, ok := inputs["next"]; ok {
		if n.items == nil {
			return nil, nil
		}
		return n.emitNext(ctx), nil
	}
	return nil, nil
}

func (n *CollectorInitNode) emitNext(ctx *Context) map[string]*packet.Packet {
	if n.cursor >= len(n.items) {
		n.items = nil
		n.carrier = nil
		return nil
	}
	item := CollectItem{
		SessionKey: n.c.SessionKey,
		Index:      n.cursor,
		Total:      len(n.items),
		IsLast:     n.cursor == len(n.items)-1,
		Value:      n.items[n.cursor],
	}
	n.cursor++
	out := n.carrier.CloneWith(item, ctx.NodeID)
	if item.IsLast {
		n.items = nil
		n.carrier = nil
	}
	return map[string]*packet.Packet{"item": out}
}

func (n *CollectorInitNode) Dispose(*Context) {
	n.items = nil
	n.carrier = nil
}

type bucketConfig struct {
	SessionKey string `mapstructure:"sessionKey"`
}

// BucketNode accumulates tagged results in the runtime's shared session
// table, storing each at its original index, and on the item flagged
// isLast emits the fully assembled ordered array and deletes the
// session. Results carrying a different session key are ignored,
// guarding against stale results from a prior run. Non-final results
// are acknowledged on the next port.
type BucketNode struct {
	c bucketConfig
}

func newBucketNode(settings map[string]interface{}) (Node, error) {
	var c bucketConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.SessionKey == "" {
		return nil, errors.New("collector-bucket: sessionKey is required")
	}
	return &BucketNode{c: c}, nil
}

func (n *BucketNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	in, ok := inputs["result"]
	if !ok || in == nil {
		return nil, nil
	}
	item, ok := asCollectItem(in.Value)
	if !ok {
		return nil, nil
	}
	if item.SessionKey != n.c.SessionKey {
		return nil, nil
	}
	ctx.Sessions.Put(item.SessionKey, item.Index, item.Total, item.Value)
	if !item.IsLast {
		return map[string]*packet.Packet{"next": in.CloneWith(item.Index, ctx.NodeID)}, nil
	}
	values, ok := ctx.Sessions.Take(item.SessionKey)
	if !ok {
		return nil, nil
	}
	return map[string]*packet.Packet{"output": in.CloneWith(values, ctx.NodeID)}, nil
}

// asCollectItem accepts the tag either typed or as a decoded JSON
// object, which is what it becomes after crossing a durable state
// adapter or an external sub-pipeline.
func asCollectItem(v interface{}) (CollectItem, bool) {
	if item, ok := v.(CollectItem); ok {
		return item, true
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return CollectItem{}, false
	}
	var item CollectItem
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &item,
		WeaklyTypedInput: true,
	})
	if err != nil || dec.Decode(m) != nil {
		return CollectItem{}, false
	}
	return item, true
}
