package packet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// A Packet is the envelope carrying one value between nodes.
// Every packet belongs to a causal chain identified by its TraceID;
// cloning a packet preserves the chain while a brand new packet
// starts a new root.
type Packet struct {
	Value      interface{} `json:"value"`
	TraceID    string      `json:"traceId"`
	ProducerID string      `json:"producerId,omitempty"`
	Binary     []byte      `json:"binary,omitempty"`
}

// New creates a packet at the root of a new causal chain.
func New(value interface{}) *Packet {
	return &Packet{
		Value:   value,
		TraceID: NewTraceID(),
	}
}

// NewTraceID returns a fresh trace id for a new causal chain.
func NewTraceID() string {
	return uuid.New().String()
}

// CloneWith returns a new packet carrying value, attributed to
// producerID, on the same causal chain as p.
// The binary attachment is shared, not copied.
func (p *Packet) CloneWith(value interface{}, producerID string) *Packet {
	return &Packet{
		Value:      value,
		TraceID:    p.TraceID,
		ProducerID: producerID,
		Binary:     p.Binary,
	}
}

// An ErrorResult is a structured, routable failure.
// It is distinct from a panic: a node returns it deliberately and the
// dispatcher surfaces it on the error channel instead of routing it
// downstream.
type ErrorResult struct {
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	NodeID      string    `json:"nodeId"`
	TraceID     string    `json:"traceId"`
	Time        time.Time `json:"timestamp"`
	Recoverable bool      `json:"recoverable"`
}

func (e *ErrorResult) Error() string {
	return fmt.Sprintf("%s: %s (node %s, trace %s)", e.Code, e.Message, e.NodeID, e.TraceID)
}
