package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcus/chatview/internal/height"
)

// testConfigPath overrides ConfigPath in tests.
var testConfigPath string

// SetTestConfigPath points Load and Save at path.
func SetTestConfigPath(path string) { testConfigPath = path }

// ResetTestConfigPath restores the default config location.
func ResetTestConfigPath() { testConfigPath = "" }

// saveConfig is the JSON-marshaling intermediary that uses string durations.
type saveConfig struct {
	Chat    saveChatConfig   `json:"chat"`
	Source  saveSourceConfig `json:"source"`
	UI      UIConfig         `json:"ui"`
	Keymap  KeymapConfig     `json:"keymap"`
	Metrics MetricsConfig    `json:"metrics,omitempty"`
}

type saveChatConfig struct {
	BufferSize    int `json:"bufferSize"`
	Slack         int `json:"slack"`
	BulkThreshold int `json:"bulkThreshold"`
	NearBottom    int `json:"nearBottom"`
	ScrolledAway  int `json:"scrolledAway"`
	Tolerance     int `json:"tolerance"`

	SettlePasses     []string `json:"settlePasses,omitempty"`
	InitialLoadGrace string   `json:"initialLoadGrace"`
	ResumeGrace      string   `json:"resumeGrace"`
	WidthDebounce    string   `json:"widthDebounce"`

	HighlightFor  string `json:"highlightFor"`
	Correct2After string `json:"correct2After"`
	Correct3After string `json:"correct3After"`
	SweepAfter    string `json:"sweepAfter"`
	JumpMargin    int    `json:"jumpMargin"`

	Estimator height.Profile `json:"estimator"`
}

type saveSourceConfig struct {
	Kind      string `json:"kind,omitempty"`
	Path      string `json:"path,omitempty"`
	Channel   string `json:"channel,omitempty"`
	HistoryDB string `json:"historyDb,omitempty"`
	Record    bool   `json:"record,omitempty"`
	DemoRate  string `json:"demoRate,omitempty"`
}

// toSaveConfig converts Config to the JSON-serializable format.
func toSaveConfig(cfg *Config) saveConfig {
	c := cfg.Chat
	passes := make([]string, len(c.SettlePasses))
	for i, d := range c.SettlePasses {
		passes[i] = d.String()
	}
	return saveConfig{
		Chat: saveChatConfig{
			BufferSize:       c.BufferSize,
			Slack:            c.Slack,
			BulkThreshold:    c.BulkThreshold,
			NearBottom:       c.NearBottom,
			ScrolledAway:     c.ScrolledAway,
			Tolerance:        c.Tolerance,
			SettlePasses:     passes,
			InitialLoadGrace: c.InitialLoadGrace.String(),
			ResumeGrace:      c.ResumeGrace.String(),
			WidthDebounce:    c.WidthDebounce.String(),
			HighlightFor:     c.HighlightFor.String(),
			Correct2After:    c.Correct2After.String(),
			Correct3After:    c.Correct3After.String(),
			SweepAfter:       c.SweepAfter.String(),
			JumpMargin:       c.JumpMargin,
			Estimator:        c.Estimator,
		},
		Source: saveSourceConfig{
			Kind:      cfg.Source.Kind,
			Path:      cfg.Source.Path,
			Channel:   cfg.Source.Channel,
			HistoryDB: cfg.Source.HistoryDB,
			Record:    cfg.Source.Record,
			DemoRate:  durationString(cfg.Source.DemoRate),
		},
		UI:      cfg.UI,
		Keymap:  cfg.Keymap,
		Metrics: cfg.Metrics,
	}
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// Save writes the config to ~/.config/chatview/config.json.
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config as JSON to path. Top-level keys the config does
// not manage are kept.
func SaveTo(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("no config path")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	merged := map[string]json.RawMessage{}
	if existing, err := os.ReadFile(path); err == nil {
		// an unreadable file is replaced
		_ = json.Unmarshal(existing, &merged)
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}

	data, err := json.Marshal(toSaveConfig(cfg))
	if err != nil {
		return err
	}
	var managed map[string]json.RawMessage
	if err := json.Unmarshal(data, &managed); err != nil {
		return err
	}
	for k, v := range managed {
		merged[k] = v
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
