package diagnostic

import (
	"go.uber.org/zap"

	"github.com/flowmesh/flowmesh"
	"github.com/flowmesh/flowmesh/keyvalue"
	"github.com/flowmesh/flowmesh/packet"
)

func fields(ctx []keyvalue.T) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	fs := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fs[i] = zap.String(kv.Key, kv.Value)
	}
	return fs
}

// RuntimeHandler logs runtime lifecycle and node events.
type RuntimeHandler struct {
	l *zap.Logger
}

func (h *RuntimeHandler) RuntimeOpened() {
	h.l.Info("runtime opened")
}

func (h *RuntimeHandler) RuntimeClosed() {
	h.l.Info("runtime closed")
}

func (h *RuntimeHandler) DeployingGraph(id string) {
	h.l.Debug("deploying graph", zap.String("graph", id))
}

func (h *RuntimeHandler) DeployedGraph(id string, nodes, edges int) {
	h.l.Info("deployed graph",
		zap.String("graph", id),
		zap.Int("nodes", nodes),
		zap.Int("edges", edges),
	)
}

func (h *RuntimeHandler) StoppedGraph(id string) {
	h.l.Info("stopped graph", zap.String("graph", id))
}

func (h *RuntimeHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	h.l.Error(msg, append([]zap.Field{zap.Error(err)}, fields(ctx)...)...)
}

func (h *RuntimeHandler) WithNodeContext(graph, node string) flowmesh.NodeDiagnostic {
	return &nodeHandler{l: h.l.With(
		zap.String("graph", graph),
		zap.String("node", node),
	)}
}

type nodeHandler struct {
	l *zap.Logger
}

func (h *nodeHandler) Info(msg string, ctx ...keyvalue.T) {
	h.l.Info(msg, fields(ctx)...)
}

func (h *nodeHandler) Warn(msg string, ctx ...keyvalue.T) {
	h.l.Warn(msg, fields(ctx)...)
}

func (h *nodeHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	h.l.Error(msg, append([]zap.Field{zap.Error(err)}, fields(ctx)...)...)
}

func (h *nodeHandler) ErrorResult(res *packet.ErrorResult) {
	h.l.Warn("node returned error result",
		zap.String("code", res.Code),
		zap.String("message", res.Message),
		zap.String("trace", res.TraceID),
		zap.Bool("recoverable", res.Recoverable),
	)
}

func (h *nodeHandler) ProcessFailed(traceID string, err error) {
	h.l.Error("node process failed",
		zap.String("trace", traceID),
		zap.Error(err),
	)
}

// HTTPDHandler logs HTTP service events.
type HTTPDHandler struct {
	l *zap.Logger
}

func (h *HTTPDHandler) StartedListening(addr string) {
	h.l.Info("started listening", zap.String("addr", addr))
}

func (h *HTTPDHandler) StoppedListening() {
	h.l.Info("stopped listening")
}

func (h *HTTPDHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	h.l.Error(msg, append([]zap.Field{zap.Error(err)}, fields(ctx)...)...)
}
