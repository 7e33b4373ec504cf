package flowmesh

import (
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// A Definition describes one node type: how to build an instance from
// its deployment settings and which optional capabilities it carries.
// Settings are decoded and validated once, when a graph is deployed,
// never re-parsed per invocation.
type Definition struct {
	Type string
	// Stateful marks node kinds that persist coordination data through
	// the runtime's state adapter.
	Stateful bool
	Factory  func(settings map[string]interface{}) (Node, error)
}

// Registry maps deployment type ids to node definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return errors.New("node definition has empty type")
	}
	if def.Factory == nil {
		return errors.Errorf("node definition %q has nil factory", def.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Type]; ok {
		return errors.Errorf("node type %q already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

func (r *Registry) Definition(typ string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typ]
	return def, ok
}

// RegisterBuiltins registers the timing/coordination node family and the
// source node kinds shipped with the engine.
func (r *Registry) RegisterBuiltins() error {
	defs := []Definition{
		{Type: "debounce", Stateful: true, Factory: newDebounceNode},
		{Type: "throttle", Stateful: true, Factory: newThrottleNode},
		{Type: "accumulator", Stateful: true, Factory: newAccumulatorNode},
		{Type: "cooldown", Stateful: true, Factory: newCooldownNode},
		{Type: "enricher", Stateful: true, Factory: newEnricherNode},
		{Type: "barrier", Stateful: true, Factory: newBarrierNode},
		{Type: "collector-init", Stateful: true, Factory: newCollectorInitNode},
		{Type: "collector-bucket", Stateful: true, Factory: newBucketNode},
		{Type: "inject", Factory: newInjectNode},
		{Type: "schedule", Factory: newScheduleNode},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// decodeSettings decodes an untyped settings bag into a typed config
// struct, rejecting unrecognized option names.
func decodeSettings(settings map[string]interface{}, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "build settings decoder")
	}
	if err := dec.Decode(settings); err != nil {
		return errors.Wrap(err, "decode settings")
	}
	return nil
}
