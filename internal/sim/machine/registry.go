package machine

import "fmt"

// Registry maps function ids to behaviors.
type Registry struct {
	byID map[string]Behavior
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]Behavior{}}
}

func (r *Registry) Register(b Behavior) error {
	id := b.FunctionID()
	if id == "" {
		return fmt.Errorf("behavior with empty function id")
	}
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("behavior %q already registered", id)
	}
	r.byID[id] = b
	return nil
}

func (r *Registry) Lookup(functionID string) (Behavior, bool) {
	b, ok := r.byID[functionID]
	return b, ok
}

// Builtin returns a registry with the stock behaviors registered.
func Builtin() *Registry {
	r := NewRegistry()
	for _, b := range []Behavior{NodeBehavior{}, ExtractorBehavior{}, VoidBehavior{}} {
		if err := r.Register(b); err != nil {
			panic(err)
		}
	}
	return r
}
