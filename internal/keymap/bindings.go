package keymap

// Binding maps a key, or a space separated key sequence, to a command in a
// context.
type Binding struct {
	Key     string
	Command string
	Context string
}

// DefaultBindings returns the default key bindings.
func DefaultBindings() []Binding {
	return []Binding{
		// Global bindings
		{Key: "q", Command: "quit", Context: "global"},
		{Key: "ctrl+c", Command: "quit", Context: "global"},
		{Key: "ctrl+h", Command: "toggle-footer", Context: "global"},
		{Key: "?", Command: "toggle-help", Context: "global"},
		{Key: "!", Command: "toggle-diagnostics", Context: "global"},

		// Chat list
		{Key: "k", Command: "scroll-up", Context: "chat"},
		{Key: "up", Command: "scroll-up", Context: "chat"},
		{Key: "j", Command: "scroll-down", Context: "chat"},
		{Key: "down", Command: "scroll-down", Context: "chat"},
		{Key: "pgup", Command: "page-up", Context: "chat"},
		{Key: "ctrl+u", Command: "page-up", Context: "chat"},
		{Key: "pgdown", Command: "page-down", Context: "chat"},
		{Key: "ctrl+d", Command: "page-down", Context: "chat"},
		{Key: "g g", Command: "scroll-top", Context: "chat"},
		{Key: "home", Command: "scroll-top", Context: "chat"},
		{Key: "G", Command: "resume", Context: "chat"},
		{Key: "end", Command: "resume", Context: "chat"},
		{Key: "[", Command: "select-prev", Context: "chat"},
		{Key: "]", Command: "select-next", Context: "chat"},
		{Key: "esc", Command: "clear-selection", Context: "chat"},
		{Key: "enter", Command: "jump-to-parent", Context: "chat"},
		{Key: "p", Command: "jump-to-parent", Context: "chat"},
		{Key: "/", Command: "jump-prompt", Context: "chat"},
		{Key: "y", Command: "copy-message", Context: "chat"},
		{Key: "t", Command: "toggle-timestamps", Context: "chat"},

		// Jump prompt (message id input)
		{Key: "esc", Command: "cancel", Context: "chat-jump"},
		{Key: "enter", Command: "confirm", Context: "chat-jump"},
	}
}

// RegisterDefaults registers all default bindings with the registry.
func RegisterDefaults(r *Registry) {
	for _, b := range DefaultBindings() {
		r.RegisterBinding(b)
	}
}
