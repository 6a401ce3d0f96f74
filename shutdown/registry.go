package shutdown

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"crowdview/core"
)

// Hook priorities used by the viewer. Lower runs first.
const (
	PrioritySession = 10 // stop ingesting before anything else
	PriorityHTTP    = 20
	PriorityLogger  = 90 // flush last
)

type hook struct {
	name     string
	priority int
	seq      int
	fn       core.ShutdownFunc
}

// Registry holds cleanup hooks and runs them in priority order. Hooks with
// equal priority run in registration order.
type Registry struct {
	mu     sync.Mutex
	hooks  []hook
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Registration after Run is ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.hooks = append(r.hooks, hook{name: name, priority: priority, seq: len(r.hooks), fn: fn})
}

func (r *Registry) sorted() []hook {
	out := slices.Clone(r.hooks)
	slices.SortFunc(out, func(a, b hook) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		return a.seq - b.seq
	})
	return out
}

// Run calls every hook once, in order, even when earlier hooks fail. Each
// error is wrapped with the hook name. A second Run returns nil.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	hooks := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names returns hook names in run order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.sorted()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	return names
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}
