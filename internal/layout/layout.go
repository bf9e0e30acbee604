// Package layout composes chat rows for the terminal and computes their exact
// heights. Structured messages get their Layout.Height from here before they
// enter the list, so the height oracle can trust them without a measurement.
package layout

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/x/ansi"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marcus/chatview/internal/message"
)

// DefaultCacheSize bounds the number of cached heights.
const DefaultCacheSize = 2048

// DeletedText replaces the body of deleted or cleared messages.
const DeletedText = "<message deleted>"

// FirstMessageText is the banner above a chatter's first message.
const FirstMessageText = "first message in chat"

const timestampFormat = "15:04 "

// Options change how a single row is composed.
type Options struct {
	Timestamps bool
	Deleted    bool
}

// Block is a composed row. Lines holds the wrapped body; its first line
// starts with Prefix unless the prefix itself had to wrap. Prefix is
// Stamp + Glyph + Name.
type Block struct {
	Reply  string
	Banner string
	Prefix string
	Stamp  string
	Glyph  string
	Name   string
	Lines  []string
}

// Height is the number of terminal rows the block occupies.
func (b Block) Height() int {
	h := len(b.Lines)
	if b.Reply != "" {
		h++
	}
	if b.Banner != "" {
		h++
	}
	if h < 1 {
		h = 1
	}
	return h
}

// Compose lays out e at width. A width of 0 or less disables wrapping.
func Compose(e message.Entry, width int, opts Options) Block {
	var b Block
	if opts.Deleted {
		b.Lines = []string{fit(DeletedText, width)}
		return b
	}
	if e.Reply != nil {
		b.Reply = fit(replyHeader(e.Reply), width)
	}
	if e.FirstMessage {
		b.Banner = fit(FirstMessageText, width)
	}
	b.Stamp, b.Glyph, b.Name = prefixParts(e, opts.Timestamps)
	b.Prefix = b.Stamp + b.Glyph + b.Name

	body := b.Prefix + e.Text
	if width <= 0 {
		b.Lines = strings.Split(body, "\n")
		return b
	}
	b.Lines = strings.Split(ansi.Wrap(body, width, ""), "\n")
	return b
}

func replyHeader(r *message.Reply) string {
	var sb strings.Builder
	sb.WriteString("↳ replying to")
	if r.ParentLogin != "" {
		sb.WriteString(" @")
		sb.WriteString(r.ParentLogin)
	}
	if r.ParentText != "" {
		sb.WriteString(": ")
		sb.WriteString(strings.ReplaceAll(r.ParentText, "\n", " "))
	}
	return sb.String()
}

func prefixParts(e message.Entry, timestamps bool) (stamp, glyph, name string) {
	if timestamps {
		if e.Timestamp.IsZero() {
			stamp = strings.Repeat(" ", len(timestampFormat))
		} else {
			stamp = e.Timestamp.In(time.Local).Format(timestampFormat)
		}
	}
	if len(e.Badges) > 0 {
		glyph = BadgeGlyph(e.Badges[0]) + " "
	}
	if n := e.Author(); n != "" {
		name = n + ": "
	}
	return stamp, glyph, name
}

// BadgeGlyph returns the single-column marker shown for a badge.
func BadgeGlyph(name string) string {
	switch name {
	case "broadcaster":
		return "B"
	case "moderator":
		return "M"
	case "vip":
		return "V"
	case "subscriber", "founder":
		return "S"
	case "staff", "admin":
		return "!"
	default:
		return "*"
	}
}

func fit(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// Service computes heights for structured messages at the current width.
type Service struct {
	width      int
	timestamps bool
	cache      *lru.Cache[uint64, int]
}

// New creates a service caching up to size heights.
func New(size int) (*Service, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[uint64, int](size)
	if err != nil {
		return nil, err
	}
	return &Service{cache: cache}, nil
}

// SetWidth sets the layout width in columns.
func (s *Service) SetWidth(w int) {
	if w < 0 {
		w = 0
	}
	s.width = w
}

// Width returns the layout width.
func (s *Service) Width() int { return s.width }

// SetTimestamps toggles the timestamp gutter.
func (s *Service) SetTimestamps(on bool) { s.timestamps = on }

// Timestamps reports whether the gutter is shown.
func (s *Service) Timestamps() bool { return s.timestamps }

// Options returns the row options for the current settings.
func (s *Service) Options(deleted bool) Options {
	return Options{Timestamps: s.timestamps, Deleted: deleted}
}

// Height returns the row height of m at the current width.
func (s *Service) Height(m message.Structured) int {
	return s.EntryHeight(message.Normalize(m))
}

// Apply sets m.Layout.Height for the current width.
func (s *Service) Apply(m *message.Structured) {
	if m == nil {
		return
	}
	m.Layout.Height = s.Height(*m)
}

// EntryHeight returns the row height of e at the current width.
func (s *Service) EntryHeight(e message.Entry) int {
	key := s.key(e)
	if h, ok := s.cache.Get(key); ok {
		return h
	}
	h := Compose(e, s.width, s.Options(false)).Height()
	s.cache.Add(key, h)
	return h
}

// Rows composes e with the current settings.
func (s *Service) Rows(e message.Entry, deleted bool) Block {
	return Compose(e, s.width, s.Options(deleted))
}

// CacheLen returns the number of cached heights.
func (s *Service) CacheLen() int { return s.cache.Len() }

// Purge drops every cached height.
func (s *Service) Purge() { s.cache.Purge() }

func (s *Service) key(e message.Entry) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.width))
	_, _ = d.Write(buf[:])
	var flags byte
	if s.timestamps {
		flags |= 1
	}
	if e.FirstMessage {
		flags |= 2
	}
	if e.Reply != nil {
		flags |= 4
	}
	_, _ = d.Write([]byte{flags})
	if len(e.Badges) > 0 {
		_, _ = d.WriteString(e.Badges[0])
	}
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(e.Author())
	_, _ = d.Write([]byte{0})
	if e.Reply != nil {
		_, _ = d.WriteString(e.Reply.ParentLogin)
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.WriteString(e.Text)
	return d.Sum64()
}
