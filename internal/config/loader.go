package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcus/chatview/internal/height"
)

const (
	configDir  = ".config/chatview"
	configFile = "config.json"
)

// yamlFiles are tried, in order, when the default JSON file does not exist.
var yamlFiles = []string{"config.yaml", "config.yml"}

// rawConfig is the unmarshaling intermediary for both JSON and YAML.
type rawConfig struct {
	Chat    rawChatConfig   `json:"chat" yaml:"chat"`
	Source  rawSourceConfig `json:"source" yaml:"source"`
	UI      rawUIConfig     `json:"ui" yaml:"ui"`
	Keymap  KeymapConfig    `json:"keymap" yaml:"keymap"`
	Metrics MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type rawChatConfig struct {
	BufferSize    *int `json:"bufferSize" yaml:"bufferSize"`
	Slack         *int `json:"slack" yaml:"slack"`
	BulkThreshold *int `json:"bulkThreshold" yaml:"bulkThreshold"`
	NearBottom    *int `json:"nearBottom" yaml:"nearBottom"`
	ScrolledAway  *int `json:"scrolledAway" yaml:"scrolledAway"`
	Tolerance     *int `json:"tolerance" yaml:"tolerance"`

	SettlePasses     []string `json:"settlePasses" yaml:"settlePasses"`
	InitialLoadGrace string   `json:"initialLoadGrace" yaml:"initialLoadGrace"`
	ResumeGrace      string   `json:"resumeGrace" yaml:"resumeGrace"`
	WidthDebounce    string   `json:"widthDebounce" yaml:"widthDebounce"`

	HighlightFor  string `json:"highlightFor" yaml:"highlightFor"`
	Correct2After string `json:"correct2After" yaml:"correct2After"`
	Correct3After string `json:"correct3After" yaml:"correct3After"`
	SweepAfter    string `json:"sweepAfter" yaml:"sweepAfter"`
	JumpMargin    *int   `json:"jumpMargin" yaml:"jumpMargin"`

	Estimator *height.Profile `json:"estimator" yaml:"estimator"`
}

type rawSourceConfig struct {
	Kind      string `json:"kind" yaml:"kind"`
	Path      string `json:"path" yaml:"path"`
	Channel   string `json:"channel" yaml:"channel"`
	HistoryDB string `json:"historyDb" yaml:"historyDb"`
	Record    *bool  `json:"record" yaml:"record"`
	DemoRate  string `json:"demoRate" yaml:"demoRate"`
}

type rawUIConfig struct {
	ShowFooter     *bool `json:"showFooter" yaml:"showFooter"`
	ShowTimestamps *bool `json:"showTimestamps" yaml:"showTimestamps"`
}

// Load loads configuration from the default location.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration from a specific path.
// If path is empty, uses ~/.config/chatview/config.json, falling back to
// config.yaml or config.yml in the same directory.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultPath()
		if path == "" {
			return finish(cfg)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg) // defaults if no config file
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	mergeConfig(cfg, &raw)

	if cfg.Source.Kind == "file" && cfg.Source.Path != "" {
		if _, err := os.Stat(cfg.Source.Path); os.IsNotExist(err) {
			slog.Warn("chat log not found, waiting for it", "path", cfg.Source.Path)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.Source.Path = ExpandPath(cfg.Source.Path)
	cfg.Source.HistoryDB = ExpandPath(cfg.Source.HistoryDB)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultPath returns the JSON config path, or the first YAML file present
// when there is no JSON file.
func defaultPath() string {
	path := ConfigPath()
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	dir := filepath.Dir(path)
	for _, name := range yamlFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func parseDuration(s string, dst *time.Duration) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	} else {
		slog.Warn("ignoring invalid duration in config", "value", s, "err", err)
	}
}

func setInt(src *int, dst *int) {
	if src != nil {
		*dst = *src
	}
}

// mergeConfig merges raw config values into the config.
func mergeConfig(cfg *Config, raw *rawConfig) {
	// Chat
	c := &cfg.Chat
	setInt(raw.Chat.BufferSize, &c.BufferSize)
	setInt(raw.Chat.Slack, &c.Slack)
	setInt(raw.Chat.BulkThreshold, &c.BulkThreshold)
	setInt(raw.Chat.NearBottom, &c.NearBottom)
	setInt(raw.Chat.ScrolledAway, &c.ScrolledAway)
	setInt(raw.Chat.Tolerance, &c.Tolerance)
	setInt(raw.Chat.JumpMargin, &c.JumpMargin)

	if len(raw.Chat.SettlePasses) > 0 {
		passes := make([]time.Duration, 0, len(raw.Chat.SettlePasses))
		for _, s := range raw.Chat.SettlePasses {
			var d time.Duration
			parseDuration(s, &d)
			if d > 0 {
				passes = append(passes, d)
			}
		}
		if len(passes) > 0 {
			c.SettlePasses = passes
		}
	}
	parseDuration(raw.Chat.InitialLoadGrace, &c.InitialLoadGrace)
	parseDuration(raw.Chat.ResumeGrace, &c.ResumeGrace)
	parseDuration(raw.Chat.WidthDebounce, &c.WidthDebounce)
	parseDuration(raw.Chat.HighlightFor, &c.HighlightFor)
	parseDuration(raw.Chat.Correct2After, &c.Correct2After)
	parseDuration(raw.Chat.Correct3After, &c.Correct3After)
	parseDuration(raw.Chat.SweepAfter, &c.SweepAfter)
	if raw.Chat.Estimator != nil {
		c.Estimator = *raw.Chat.Estimator
	}

	// Source
	if raw.Source.Kind != "" {
		cfg.Source.Kind = raw.Source.Kind
	}
	if raw.Source.Path != "" {
		cfg.Source.Path = raw.Source.Path
	}
	if raw.Source.Channel != "" {
		cfg.Source.Channel = raw.Source.Channel
	}
	if raw.Source.HistoryDB != "" {
		cfg.Source.HistoryDB = raw.Source.HistoryDB
	}
	if raw.Source.Record != nil {
		cfg.Source.Record = *raw.Source.Record
	}
	parseDuration(raw.Source.DemoRate, &cfg.Source.DemoRate)

	// UI
	if raw.UI.ShowFooter != nil {
		cfg.UI.ShowFooter = *raw.UI.ShowFooter
	}
	if raw.UI.ShowTimestamps != nil {
		cfg.UI.ShowTimestamps = *raw.UI.ShowTimestamps
	}

	// Keymap
	for k, v := range raw.Keymap.Overrides {
		cfg.Keymap.Overrides[k] = v
	}

	// Metrics
	if raw.Metrics.Addr != "" {
		cfg.Metrics.Addr = raw.Metrics.Addr
	}
}

// ExpandPath expands ~ to home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if testConfigPath != "" {
		return testConfigPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDir, configFile)
}

// ConfigDir returns the directory holding the config and state files.
func ConfigDir() string {
	if p := ConfigPath(); p != "" {
		return filepath.Dir(p)
	}
	return ""
}
