package packet

import (
	"fmt"
	"testing"
)

func TestCloneWithPreservesTraceID(t *testing.T) {
	p := New("hop-0")

	hop := p
	for i := 1; i <= 10; i++ {
		hop = hop.CloneWith(fmt.Sprintf("hop-%d", i), fmt.Sprintf("node-%d", i))
	}

	if hop.TraceID != p.TraceID {
		t.Errorf("trace id changed across hops: got %s exp %s", hop.TraceID, p.TraceID)
	}
	if hop.Value != "hop-10" {
		t.Errorf("unexpected value: got %v", hop.Value)
	}
	if hop.ProducerID != "node-10" {
		t.Errorf("unexpected producer: got %s", hop.ProducerID)
	}
}

func TestNewStartsNewRoot(t *testing.T) {
	a := New(1)
	b := New(2)
	if a.TraceID == b.TraceID {
		t.Errorf("two roots share a trace id: %s", a.TraceID)
	}
	if a.TraceID == "" {
		t.Error("empty trace id")
	}
}

func TestCloneWithSharesBinary(t *testing.T) {
	p := New(nil)
	p.Binary = []byte{0xde, 0xad}

	c := p.CloneWith("v", "n")
	if len(c.Binary) != 2 {
		t.Errorf("binary attachment not carried: got %v", c.Binary)
	}
}

func TestErrorResultError(t *testing.T) {
	e := &ErrorResult{
		Code:    "bad_input",
		Message: "no such port",
		NodeID:  "n1",
		TraceID: "t1",
	}
	exp := "bad_input: no such port (node n1, trace t1)"
	if got := e.Error(); got != exp {
		t.Errorf("unexpected error string: got %q exp %q", got, exp)
	}
}
