package plugin

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Registry owns the loaded plugins in registration order.
type Registry struct {
	mu       sync.RWMutex
	ctx      *Context
	plugins  []Plugin
	byID     map[string]Plugin
	failures map[string]error
}

// NewRegistry creates a registry that initializes plugins with ctx.
func NewRegistry(ctx *Context) *Registry {
	return &Registry{
		ctx:      ctx,
		byID:     make(map[string]Plugin),
		failures: make(map[string]error),
	}
}

// Context returns the shared plugin context.
func (r *Registry) Context() *Context { return r.ctx }

// Register initializes p and adds it. A plugin whose Init fails is recorded
// as unavailable and not added.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("plugin %q already registered", id)
	}
	if err := p.Init(r.ctx); err != nil {
		r.failures[id] = err
		if r.ctx != nil && r.ctx.Logger != nil {
			r.ctx.Logger.Warn("plugin unavailable", "id", id, "err", err)
		}
		return nil
	}
	r.plugins = append(r.plugins, p)
	r.byID[id] = p
	return nil
}

// Plugins returns the registered plugins. The slice is shared; callers may
// replace elements with the value returned by Update.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins
}

// Get returns the plugin with id.
func (r *Registry) Get(id string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Unavailable returns plugins whose Init failed, keyed by ID.
func (r *Registry) Unavailable() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// Start starts every plugin and batches their commands.
func (r *Registry) Start() []tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range r.Plugins() {
		if cmd := p.Start(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Stop stops every plugin in reverse registration order.
func (r *Registry) Stop() {
	ps := r.Plugins()
	for i := len(ps) - 1; i >= 0; i-- {
		ps[i].Stop()
	}
}
