package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one kind of scheduled task.
// Handlers identify themselves by name (e.g., "listing.expire") and decode
// their own payloads; the scheduler does not know about domain types.
//
// Delivery is at-least-once: a handler may see the same task again after a
// crash or lease expiry, so Handle must be idempotent.
type Handler interface {
	Name() string
	Handle(ctx context.Context, task *Task) error
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, task *Task) error
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, task *Task) error { return h.fn(ctx, task) }

// NewHandler adapts a function to the Handler interface.
func NewHandler(name string, fn func(ctx context.Context, task *Task) error) Handler {
	return &funcHandler{name: name, fn: fn}
}

// Registry manages task handlers by name.
// Thread-safe for concurrent registration and lookup.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered for name: %s", name))
	}
	r.handlers[name] = handler
}

// Get retrieves the handler for a name.
// Returns nil if no handler is registered.
func (r *Registry) Get(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Names returns all registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
