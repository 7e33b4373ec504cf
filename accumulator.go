package flowmesh

import (
	"time"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

type accumulatorConfig struct {
	BatchSize      int   `mapstructure:"batchSize"`
	FlushOnTimeout bool  `mapstructure:"flushOnTimeout"`
	FlushTimeoutMs int64 `mapstructure:"flushTimeoutMs"`
}

// AccumulatorNode appends every arrival to an ordered buffer and emits
// the whole buffer the instant it reaches batchSize. With flushOnTimeout
// set, every arrival re-arms a deadline that flushes a partial buffer
// asynchronously. The two flush paths are mutually exclusive per batch.
type AccumulatorNode struct {
	c accumulatorConfig

	// buffer and flush are confined to the dispatch loop.
	buffer []interface{}
	flush  timer.Task
}

func newAccumulatorNode(settings map[string]interface{}) (Node, error) {
	var c accumulatorConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if c.BatchSize <= 0 {
		return nil, errors.New("accumulator: batchSize must be positive")
	}
	if c.FlushOnTimeout && c.FlushTimeoutMs <= 0 {
		return nil, errors.New("accumulator: flushOnTimeout requires a positive flushTimeoutMs")
	}
	return &AccumulatorNode{c: c}, nil
}

func (n *AccumulatorNode) Process(ctx *Context, inputs map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	in, ok := inputs["input"]
	if !ok || in == nil {
		return nil, nil
	}
	n.buffer = append(n.buffer, in.Value)

	if len(n.buffer) >= n.c.BatchSize {
		n.cancelFlush()
		batch := n.takeBuffer()
		return map[string]*packet.Packet{"output": in.CloneWith(batch, ctx.NodeID)}, nil
	}

	if n.c.FlushOnTimeout {
		n.cancelFlush()
		n.flush = ctx.Schedule(time.Duration(n.c.FlushTimeoutMs)*time.Millisecond, func() {
			n.flush = nil
			if len(n.buffer) == 0 {
				return
			}
			batch := n.takeBuffer()
			ctx.Emit(map[string]*packet.Packet{"output": in.CloneWith(batch, ctx.NodeID)})
		})
	}
	return nil, nil
}

func (n *AccumulatorNode) Dispose(*Context) {
	n.cancelFlush()
	n.buffer = nil
}

func (n *AccumulatorNode) takeBuffer() []interface{} {
	batch := n.buffer
	n.buffer = nil
	return batch
}

func (n *AccumulatorNode) cancelFlush() {
	if n.flush != nil {
		n.flush.Cancel()
		n.flush = nil
	}
}
