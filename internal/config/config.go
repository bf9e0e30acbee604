package config

import (
	"time"

	"github.com/marcus/chatview/internal/chatlist"
	"github.com/marcus/chatview/internal/height"
	"github.com/marcus/chatview/internal/loadphase"
	"github.com/marcus/chatview/internal/replyjump"
	"github.com/marcus/chatview/internal/scroll"
	"github.com/marcus/chatview/internal/source/demo"
)

// Config is the root configuration structure.
type Config struct {
	Chat    ChatConfig    `json:"chat"`
	Source  SourceConfig  `json:"source"`
	UI      UIConfig      `json:"ui"`
	Keymap  KeymapConfig  `json:"keymap"`
	Metrics MetricsConfig `json:"metrics"`
}

// ChatConfig tunes the message list engine.
type ChatConfig struct {
	BufferSize    int `json:"bufferSize"`
	Slack         int `json:"slack"`
	BulkThreshold int `json:"bulkThreshold"`

	NearBottom   int `json:"nearBottom"`   // rows from the bottom that still count as following
	ScrolledAway int `json:"scrolledAway"` // rows from the bottom that pause auto-scroll
	Tolerance    int `json:"tolerance"`    // height changes at or below this are ignored

	SettlePasses     []time.Duration `json:"settlePasses"`
	InitialLoadGrace time.Duration   `json:"initialLoadGrace"`
	ResumeGrace      time.Duration   `json:"resumeGrace"`
	WidthDebounce    time.Duration   `json:"widthDebounce"`

	HighlightFor  time.Duration `json:"highlightFor"`
	Correct2After time.Duration `json:"correct2After"`
	Correct3After time.Duration `json:"correct3After"`
	SweepAfter    time.Duration `json:"sweepAfter"`
	JumpMargin    int           `json:"jumpMargin"`

	Estimator height.Profile `json:"estimator"`
}

// SourceConfig selects where messages come from.
type SourceConfig struct {
	Kind      string        `json:"kind"` // "demo", "file" or "history"
	Path      string        `json:"path"`
	Channel   string        `json:"channel"`
	HistoryDB string        `json:"historyDb"`
	Record    bool          `json:"record"` // mirror live messages into HistoryDB
	DemoRate  time.Duration `json:"demoRate"`
}

// UIConfig configures UI appearance.
type UIConfig struct {
	ShowFooter     bool `json:"showFooter"`
	ShowTimestamps bool `json:"showTimestamps"`
}

// KeymapConfig holds key binding overrides.
type KeymapConfig struct {
	Overrides map[string]string `json:"overrides" yaml:"overrides"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"` // empty disables the endpoint
}

// Default returns the default configuration.
func Default() *Config {
	list := chatlist.CellConfig()
	return &Config{
		Chat: ChatConfig{
			BufferSize:       list.BufferSize,
			Slack:            list.Slack,
			BulkThreshold:    list.BulkThreshold,
			NearBottom:       list.Scroll.NearBottom,
			ScrolledAway:     list.Scroll.ScrolledAway,
			Tolerance:        list.Tolerance,
			SettlePasses:     append([]time.Duration(nil), list.Settle.Passes...),
			InitialLoadGrace: list.Settle.Grace,
			ResumeGrace:      list.ResumeGrace,
			WidthDebounce:    list.WidthDebounce,
			HighlightFor:     list.Jump.HighlightFor,
			Correct2After:    list.Jump.Correct2After,
			Correct3After:    list.Jump.Correct3After,
			SweepAfter:       list.Jump.SweepAfter,
			JumpMargin:       list.Jump.Margin,
			Estimator:        list.Profile,
		},
		Source: SourceConfig{
			Kind:      "demo",
			Channel:   "demo",
			HistoryDB: "~/.config/chatview/history.db",
			DemoRate:  demo.DefaultRate,
		},
		UI: UIConfig{
			ShowFooter:     true,
			ShowTimestamps: false,
		},
		Keymap: KeymapConfig{
			Overrides: make(map[string]string),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	d := Default()
	if c.Chat.BufferSize <= 0 {
		c.Chat.BufferSize = d.Chat.BufferSize
	}
	if c.Chat.Slack < 0 {
		c.Chat.Slack = d.Chat.Slack
	}
	if c.Chat.BulkThreshold <= 0 {
		c.Chat.BulkThreshold = d.Chat.BulkThreshold
	}
	if c.Chat.NearBottom < 0 {
		c.Chat.NearBottom = d.Chat.NearBottom
	}
	if c.Chat.ScrolledAway < c.Chat.NearBottom {
		c.Chat.ScrolledAway = c.Chat.NearBottom
	}
	if c.Chat.Tolerance < 0 {
		c.Chat.Tolerance = 0
	}
	if len(c.Chat.SettlePasses) == 0 {
		c.Chat.SettlePasses = d.Chat.SettlePasses
	}
	for _, dur := range []*time.Duration{
		&c.Chat.InitialLoadGrace, &c.Chat.ResumeGrace, &c.Chat.WidthDebounce,
		&c.Chat.HighlightFor, &c.Chat.Correct2After, &c.Chat.Correct3After, &c.Chat.SweepAfter,
	} {
		if *dur < 0 {
			*dur = 0
		}
	}
	if c.Chat.JumpMargin < 0 {
		c.Chat.JumpMargin = 0
	}
	if c.Source.DemoRate <= 0 {
		c.Source.DemoRate = d.Source.DemoRate
	}
	if c.Keymap.Overrides == nil {
		c.Keymap.Overrides = make(map[string]string)
	}
	return nil
}

// ListConfig converts the chat section to the engine configuration.
func (c ChatConfig) ListConfig() chatlist.Config {
	return chatlist.Config{
		Profile:       c.Estimator,
		Tolerance:     c.Tolerance,
		BufferSize:    c.BufferSize,
		Slack:         c.Slack,
		BulkThreshold: c.BulkThreshold,
		Scroll:        scroll.Config{NearBottom: c.NearBottom, ScrolledAway: c.ScrolledAway},
		Settle:        loadphase.SettleConfig{Passes: append([]time.Duration(nil), c.SettlePasses...), Grace: c.InitialLoadGrace},
		Jump: replyjump.Config{
			HighlightFor:  c.HighlightFor,
			Correct2After: c.Correct2After,
			Correct3After: c.Correct3After,
			SweepAfter:    c.SweepAfter,
			Margin:        c.JumpMargin,
		},
		ResumeGrace:   c.ResumeGrace,
		WidthDebounce: c.WidthDebounce,
	}
}
