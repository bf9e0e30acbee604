package keymap

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// GlobalContext bindings apply in every context unless the context binds the
// same key itself.
const GlobalContext = "global"

// sequenceTimeout bounds the gap between keys of a sequence like "g g".
const sequenceTimeout = time.Second

// Command is an action a key can trigger.
type Command struct {
	ID      string
	Name    string
	Context string
	Handler func() tea.Cmd
}

// Registry resolves key presses to commands.
type Registry struct {
	mu        sync.RWMutex
	bindings  map[string][]Binding // context -> bindings, overrides first
	commands  map[string]Command   // context + "/" + id
	overrides map[string]string    // key -> command id

	pending   string
	pendingAt time.Time
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings:  make(map[string][]Binding),
		commands:  make(map[string]Command),
		overrides: make(map[string]string),
		now:       time.Now,
	}
}

// RegisterBinding adds a binding.
func (r *Registry) RegisterBinding(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.Context == "" {
		b.Context = GlobalContext
	}
	r.bindings[b.Context] = append(r.bindings[b.Context], b)
}

// RegisterCommand makes a command available to bindings in its context.
// Registering the same ID and context again replaces the handler.
func (r *Registry) RegisterCommand(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Context == "" {
		c.Context = GlobalContext
	}
	r.commands[c.Context+"/"+c.ID] = c
}

// SetUserOverride binds key to cmdID in every context the command is bound
// in, ahead of the defaults.
func (r *Registry) SetUserOverride(k, cmdID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[k] = cmdID
	bound := false
	for ctx, bs := range r.bindings {
		for _, b := range bs {
			if b.Command == cmdID {
				r.bindings[ctx] = append([]Binding{{Key: k, Command: cmdID, Context: ctx}}, bs...)
				bound = true
				break
			}
		}
	}
	if !bound {
		r.bindings[GlobalContext] = append([]Binding{{Key: k, Command: cmdID, Context: GlobalContext}}, r.bindings[GlobalContext]...)
	}
}

// Overrides returns the user overrides.
func (r *Registry) Overrides() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.overrides))
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

// Lookup resolves key k in context. pending is true when k starts a sequence
// and the next key is needed.
func (r *Registry) Lookup(k, context string) (cmdID string, pending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := k
	if r.pending != "" && r.now().Sub(r.pendingAt) <= sequenceTimeout {
		seq = r.pending + " " + k
	}
	r.pending = ""

	for _, ctx := range []string{context, GlobalContext} {
		if id, ok := r.match(ctx, seq); ok {
			return id, false
		}
	}
	if seq != k {
		// the sequence broke; treat k on its own
		for _, ctx := range []string{context, GlobalContext} {
			if id, ok := r.match(ctx, k); ok {
				return id, false
			}
		}
	}
	for _, ctx := range []string{context, GlobalContext} {
		for _, b := range r.bindings[ctx] {
			if strings.HasPrefix(b.Key, k+" ") {
				r.pending = k
				r.pendingAt = r.now()
				return "", true
			}
		}
	}
	return "", false
}

func (r *Registry) match(ctx, seq string) (string, bool) {
	for _, b := range r.bindings[ctx] {
		if b.Key == seq {
			return b.Command, true
		}
	}
	return "", false
}

// Command returns the registered command cmdID for context, falling back to
// the global context.
func (r *Registry) Command(cmdID, context string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.commands[context+"/"+cmdID]; ok {
		return c, true
	}
	c, ok := r.commands[GlobalContext+"/"+cmdID]
	return c, ok
}

// Handle resolves msg and runs the matching command handler. It reports
// whether the key was consumed, including as a sequence prefix.
func (r *Registry) Handle(msg tea.KeyMsg, context string) (tea.Cmd, bool) {
	id, pending := r.Lookup(msg.String(), context)
	if pending {
		return nil, true
	}
	if id == "" {
		return nil, false
	}
	c, ok := r.Command(id, context)
	if !ok || c.Handler == nil {
		return nil, false
	}
	return c.Handler(), true
}

// BindingsForContext returns the bindings of one context, overrides first.
func (r *Registry) BindingsForContext(context string) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Binding(nil), r.bindings[context]...)
}

// Keys returns the keys bound to cmdID in context, overrides first.
func (r *Registry) Keys(cmdID, context string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []string
	seen := map[string]bool{}
	for _, ctx := range []string{context, GlobalContext} {
		for _, b := range r.bindings[ctx] {
			if b.Command == cmdID && !seen[b.Key] {
				seen[b.Key] = true
				keys = append(keys, b.Key)
			}
		}
	}
	return keys
}

// Help returns a help binding per command registered for context, in the
// order given.
func (r *Registry) Help(context string, ids ...string) []key.Binding {
	out := make([]key.Binding, 0, len(ids))
	for _, id := range ids {
		keys := r.Keys(id, context)
		if len(keys) == 0 {
			continue
		}
		name := id
		if c, ok := r.Command(id, context); ok && c.Name != "" {
			name = c.Name
		}
		out = append(out, key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], name),
		))
	}
	return out
}
