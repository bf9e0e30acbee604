package chatlist

import (
	"time"

	"github.com/marcus/chatview/internal/height"
	"github.com/marcus/chatview/internal/loadphase"
	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/replyjump"
	"github.com/marcus/chatview/internal/scroll"
)

// Default timings owned by the controller itself.
const (
	DefaultResumeGrace   = 250 * time.Millisecond
	DefaultWidthDebounce = 150 * time.Millisecond
)

// Config tunes the list engine. The zero value is not usable; start from
// PixelConfig or CellConfig.
type Config struct {
	Profile    height.Profile
	Tolerance  int
	Timestamps bool

	BufferSize    int
	Slack         int
	BulkThreshold int

	Scroll scroll.Config
	Settle loadphase.SettleConfig
	Jump   replyjump.Config

	ResumeGrace   time.Duration
	WidthDebounce time.Duration
}

// PixelConfig returns the defaults for a pixel surface with the given font
// size.
func PixelConfig(fontSize float64) Config {
	return Config{
		Profile:       height.PixelProfile(fontSize),
		Tolerance:     height.DefaultTolerance,
		BufferSize:    message.DefaultBufferSize,
		Slack:         height.DefaultSlack,
		BulkThreshold: loadphase.DefaultBulkThreshold,
		Scroll:        scroll.DefaultConfig(),
		Settle:        loadphase.DefaultSettleConfig(),
		Jump:          replyjump.DefaultConfig(),
		ResumeGrace:   DefaultResumeGrace,
		WidthDebounce: DefaultWidthDebounce,
	}
}

// CellConfig returns the defaults for a terminal, where heights are rows and
// rendering is exact.
func CellConfig() Config {
	cfg := PixelConfig(1)
	cfg.Profile = height.CellProfile()
	cfg.Tolerance = 0
	cfg.Scroll = scroll.Config{NearBottom: 2, ScrolledAway: 5}
	return cfg
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = message.DefaultBufferSize
	}
	if c.Slack < 0 {
		c.Slack = height.DefaultSlack
	}
	if c.Tolerance < 0 {
		c.Tolerance = 0
	}
	if c.WidthDebounce < 0 {
		c.WidthDebounce = 0
	}
	if c.ResumeGrace < 0 {
		c.ResumeGrace = 0
	}
	return c
}
