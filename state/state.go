// Package state provides pluggable storage for a stateful node's pending
// coordination data. The in-memory adapter is the default; the bolt and
// redis adapters satisfy the same interface for deployments that need
// state to survive a restart or to be shared across processes.
//
// Durable adapters round-trip values through JSON, so values stored
// through them must be JSON-marshalable and are read back as generic
// JSON types. The memory adapter stores values as-is.
package state

import "sync"

// Adapter is the storage contract injected into stateful nodes.
// Keys are scoped per node instance.
type Adapter interface {
	Get(nodeID, key string) (interface{}, bool, error)
	Set(nodeID, key string, value interface{}) error
	Delete(nodeID, key string) error
}

// Scope is an adapter view bound to one node instance.
type Scope struct {
	adapter Adapter
	nodeID  string
}

// NewScope binds adapter to nodeID.
func NewScope(adapter Adapter, nodeID string) Scope {
	return Scope{adapter: adapter, nodeID: nodeID}
}

func (s Scope) Get(key string) (interface{}, bool, error) {
	return s.adapter.Get(s.nodeID, key)
}

func (s Scope) Set(key string, value interface{}) error {
	return s.adapter.Set(s.nodeID, key, value)
}

func (s Scope) Delete(key string) error {
	return s.adapter.Delete(s.nodeID, key)
}

// MemoryAdapter is the in-process default adapter.
type MemoryAdapter struct {
	mu    sync.RWMutex
	nodes map[string]map[string]interface{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		nodes: make(map[string]map[string]interface{}),
	}
}

func (a *MemoryAdapter) Get(nodeID, key string) (interface{}, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys, ok := a.nodes[nodeID]
	if !ok {
		return nil, false, nil
	}
	v, ok := keys[key]
	return v, ok, nil
}

func (a *MemoryAdapter) Set(nodeID, key string, value interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys, ok := a.nodes[nodeID]
	if !ok {
		keys = make(map[string]interface{})
		a.nodes[nodeID] = keys
	}
	keys[key] = value
	return nil
}

func (a *MemoryAdapter) Delete(nodeID, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if keys, ok := a.nodes[nodeID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(a.nodes, nodeID)
		}
	}
	return nil
}
