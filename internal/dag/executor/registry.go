package executor

import (
	"fmt"
	"sync"
)

// Registry is the process-wide, name-keyed map of executor factories.
// It is mutated only during worker init (Register) and becomes read-only
// once Freeze is called, matching spec.md §4.2's "process-wide, read-only
// after worker initialization" contract and the Design Notes'
// requirement that the registry be frozen before a worker begins
// processing attempts.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	frozen    bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a Registry pre-populated with the built-in
// executors (shell, script, http, sql, echo, plugin), unfrozen so callers can
// still Register additional user-supplied executors before Freeze.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister("shell", func() (Executor, error) { return &ShellExecutor{}, nil })
	r.mustRegister("script", func() (Executor, error) { return &ScriptExecutor{}, nil })
	r.mustRegister("http", func() (Executor, error) { return NewHTTPExecutor(), nil })
	r.mustRegister("sql", func() (Executor, error) { return &SQLExecutor{}, nil })
	r.mustRegister("echo", func() (Executor, error) { return &EchoExecutor{}, nil })
	r.mustRegister("plugin", func() (Executor, error) { return &PluginExecutor{}, nil })
	return r
}

func (r *Registry) mustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Register adds a named factory. It rejects duplicate names (spec.md
// §4.2 recommends rejecting over last-write-wins) and fails once the
// registry has been frozen.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry frozen: cannot register %q", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("executor %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Freeze stops accepting further registrations. Call it once at worker
// start, after every built-in and user-supplied executor is registered.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get resolves name to a fresh Executor instance.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown executor type %q", name)
	}
	return factory()
}
