package height

import (
	"math"

	"github.com/mattn/go-runewidth"

	"github.com/marcus/chatview/internal/message"
)

// Profile holds the constants of the heuristic height estimate. Units are
// whatever the host measures in: pixels for a browser-like surface, terminal
// rows and columns for the TUI.
type Profile struct {
	FontSize        float64 `json:"fontSize" yaml:"fontSize"`
	LineHeightRatio float64 `json:"lineHeightRatio" yaml:"lineHeightRatio"`
	GlyphWidthRatio float64 `json:"glyphWidthRatio" yaml:"glyphWidthRatio"`

	HorizontalPadding int `json:"horizontalPadding" yaml:"horizontalPadding"`
	BadgeGutter       int `json:"badgeGutter" yaml:"badgeGutter"`
	TimestampGutter   int `json:"timestampGutter" yaml:"timestampGutter"`

	// EmotePadding is added to the content length per emote, since emotes
	// render wider than their text shorthand.
	EmotePadding int `json:"emotePadding" yaml:"emotePadding"`
	// EmoteHeight is the minimum row height when a row contains emotes.
	EmoteHeight int `json:"emoteHeight" yaml:"emoteHeight"`

	ReplyHeader        int `json:"replyHeader" yaml:"replyHeader"`
	FirstMessageBanner int `json:"firstMessageBanner" yaml:"firstMessageBanner"`
	RowPadding         int `json:"rowPadding" yaml:"rowPadding"`
	SafetyBuffer       int `json:"safetyBuffer" yaml:"safetyBuffer"`
}

// PixelProfile returns pixel constants for the given font size.
func PixelProfile(fontSize float64) Profile {
	if fontSize <= 0 {
		fontSize = 14
	}
	return Profile{
		FontSize:           fontSize,
		LineHeightRatio:    1.5,
		GlyphWidthRatio:    0.55,
		HorizontalPadding:  10,
		BadgeGutter:        40,
		TimestampGutter:    45,
		EmotePadding:       3,
		EmoteHeight:        28,
		ReplyHeader:        20,
		FirstMessageBanner: 24,
		RowPadding:         8,
		SafetyBuffer:       4,
	}
}

// CellProfile returns constants for a terminal grid: one row per line and
// one column per glyph.
func CellProfile() Profile {
	return Profile{
		FontSize:           1,
		LineHeightRatio:    1,
		GlyphWidthRatio:    1,
		BadgeGutter:        2,
		TimestampGutter:    6,
		EmoteHeight:        1,
		ReplyHeader:        1,
		FirstMessageBanner: 1,
	}
}

// Estimator approximates the height of legacy rows that have not been
// measured yet. It only has to be close enough to avoid a visible pop when
// the real measurement lands.
type Estimator struct {
	profile    Profile
	width      int
	timestamps bool
}

// NewEstimator creates an estimator for profile p.
func NewEstimator(p Profile) *Estimator {
	if p.FontSize <= 0 {
		p.FontSize = 1
	}
	if p.LineHeightRatio <= 0 {
		p.LineHeightRatio = 1
	}
	if p.GlyphWidthRatio <= 0 {
		p.GlyphWidthRatio = 1
	}
	return &Estimator{profile: p}
}

// Profile returns the estimator constants.
func (e *Estimator) Profile() Profile { return e.profile }

// SetWidth sets the known viewport width.
func (e *Estimator) SetWidth(w int) { e.width = w }

// Width returns the viewport width.
func (e *Estimator) Width() int { return e.width }

// SetTimestamps toggles the timestamp gutter.
func (e *Estimator) SetTimestamps(on bool) { e.timestamps = on }

// LineHeight is the height of one line of text.
func (e *Estimator) LineHeight() int {
	return int(math.Ceil(e.profile.FontSize * e.profile.LineHeightRatio))
}

func (e *Estimator) glyphWidth() float64 {
	return e.profile.FontSize * e.profile.GlyphWidthRatio
}

// ContentWidth is the viewport width minus fixed chrome.
func (e *Estimator) ContentWidth() int {
	w := e.width - 2*e.profile.HorizontalPadding - e.profile.BadgeGutter
	if e.timestamps {
		w -= e.profile.TimestampGutter
	}
	if floor := int(math.Ceil(e.glyphWidth())); w < floor {
		w = floor
	}
	return w
}

// CharsPerLine is how many average glyphs fit on one line.
func (e *Estimator) CharsPerLine() int {
	n := int(math.Floor(float64(e.ContentWidth()) / e.glyphWidth()))
	if n < 1 {
		return 1
	}
	return n
}

// Estimate returns the heuristic height of entry.
func (e *Estimator) Estimate(entry message.Entry) int {
	p := e.profile
	lineHeight := e.LineHeight()

	lines := 1
	if e.width > 0 {
		adjusted := runewidth.StringWidth(entry.Text) + entry.EmoteCount*p.EmotePadding
		lines = int(math.Ceil(float64(adjusted) / float64(e.CharsPerLine())))
		if lines < 1 {
			lines = 1
		}
	}

	h := lines * lineHeight
	if entry.Reply != nil {
		h += p.ReplyHeader
	}
	if entry.FirstMessage {
		h += p.FirstMessageBanner
	}
	if entry.EmoteCount > 0 && p.EmoteHeight > lineHeight && h < p.EmoteHeight {
		h = p.EmoteHeight
	}
	h += p.RowPadding + p.SafetyBuffer
	if h < 1 {
		h = 1
	}
	return h
}
