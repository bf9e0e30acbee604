package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// State holds persistent user preferences.
type State struct {
	// ShowTimestamps is nil until the user toggles the gutter; the config
	// default applies until then.
	ShowTimestamps *bool  `json:"showTimestamps,omitempty"`
	LastChannel    string `json:"lastChannel,omitempty"`
	LastSource     string `json:"lastSource,omitempty"`
}

var (
	current *State
	mu      sync.RWMutex
	path    string
)

// Init loads state from the default location.
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return InitWithDir(filepath.Join(home, ".config", "chatview"))
}

// InitWithDir loads state from a specified directory.
// This is primarily for testing to avoid reading real user state.
func InitWithDir(dir string) error {
	path = filepath.Join(dir, "state.json")
	return Load()
}

// Load reads state from disk.
func Load() error {
	mu.Lock()
	defer mu.Unlock()

	current = &State{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil // no state file yet, use defaults
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, current)
}

// Save writes state to disk.
func Save() error {
	mu.RLock()
	defer mu.RUnlock()

	if current == nil || path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetShowTimestamps returns the saved timestamp preference, or def when the
// user never toggled it.
func GetShowTimestamps(def bool) bool {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil || current.ShowTimestamps == nil {
		return def
	}
	return *current.ShowTimestamps
}

// SetShowTimestamps saves the timestamp preference.
func SetShowTimestamps(on bool) error {
	mu.Lock()
	if current == nil {
		current = &State{}
	}
	current.ShowTimestamps = &on
	mu.Unlock()
	return Save()
}

// GetLastChannel returns the channel open when the app last exited.
func GetLastChannel() string {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return ""
	}
	return current.LastChannel
}

// SetLastChannel saves the open channel.
func SetLastChannel(channel string) error {
	mu.Lock()
	if current == nil {
		current = &State{}
	}
	current.LastChannel = channel
	mu.Unlock()
	return Save()
}

// GetLastSource returns the source kind used last.
func GetLastSource() string {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return ""
	}
	return current.LastSource
}

// SetLastSource saves the source kind.
func SetLastSource(kind string) error {
	mu.Lock()
	if current == nil {
		current = &State{}
	}
	current.LastSource = kind
	mu.Unlock()
	return Save()
}
