package flowmesh

import (
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/packet"
	"github.com/flowmesh/flowmesh/timer"
)

type scheduleConfig struct {
	IntervalMs int64  `mapstructure:"intervalMs"`
	Cron       string `mapstructure:"cron"`
}

// ScheduleNode fires on a fixed interval or a cron expression. Each
// fire starts a new causal chain, since a timer has no upstream input.
type ScheduleNode struct {
	c    scheduleConfig
	expr *cronexpr.Expression

	task timer.Task
}

func newScheduleNode(settings map[string]interface{}) (Node, error) {
	var c scheduleConfig
	if err := decodeSettings(settings, &c); err != nil {
		return nil, err
	}
	if (c.IntervalMs > 0) == (c.Cron != "") {
		return nil, errors.New("schedule: exactly one of intervalMs or cron is required")
	}
	n := &ScheduleNode{c: c}
	if c.Cron != "" {
		expr, err := cronexpr.Parse(c.Cron)
		if err != nil {
			return nil, errors.Wrapf(err, "schedule: invalid cron %q", c.Cron)
		}
		n.expr = expr
	}
	return n, nil
}

func (n *ScheduleNode) Initialize(ctx *Context) error {
	if n.expr != nil {
		n.armCron(ctx)
		return nil
	}
	n.task = ctx.Repeat(time.Duration(n.c.IntervalMs)*time.Millisecond, func() {
		n.fire(ctx)
	})
	return nil
}

// armCron chains single-shot deadlines from one cron occurrence to the
// next.
func (n *ScheduleNode) armCron(ctx *Context) {
	next := n.expr.Next(ctx.Now())
	if next.IsZero() {
		// The expression has no future occurrence.
		return
	}
	n.task = ctx.Schedule(next.Sub(ctx.Now()), func() {
		n.fire(ctx)
		n.armCron(ctx)
	})
}

func (n *ScheduleNode) fire(ctx *Context) {
	ctx.Emit(map[string]*packet.Packet{
		"output": packet.New(map[string]interface{}{
			"time": ctx.Now(),
		}),
	})
}

func (n *ScheduleNode) Process(*Context, map[string]*packet.Packet) (map[string]*packet.Packet, error) {
	// Purely clock driven.
	return nil, nil
}

func (n *ScheduleNode) Dispose(*Context) {
	if n.task != nil {
		n.task.Cancel()
		n.task = nil
	}
}
