// Package message defines the two shapes a chat message arrives in (a
// structured record with an optional precomputed layout height, or a raw
// protocol line) and the single normalization step that turns either into an
// Entry for the measurement pipeline.
package message

import (
	"time"
	"unicode/utf8"
)

// Message is a chat message as delivered by a source. It is a closed union of
// Structured and Legacy.
type Message interface {
	isMessage()
}

// Structured is a message delivered as a record, optionally carrying a
// width-aware height computed by the layout service.
type Structured struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Login        string    `json:"login,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	Color        string    `json:"color,omitempty"`
	Text         string    `json:"text"`
	Badges       []string  `json:"badges,omitempty"`
	Emotes       []Emote   `json:"emotes,omitempty"`
	Reply        *Reply    `json:"reply,omitempty"`
	FirstMessage bool      `json:"firstMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Layout       Layout    `json:"layout"`
}

// Legacy is a raw protocol line that still needs parsing and height estimation.
type Legacy struct {
	Raw string
}

func (Structured) isMessage() {}
func (Legacy) isMessage()     {}

// Emote is a span of message text that renders as an image.
type Emote struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Reply references the parent of a threaded reply.
type Reply struct {
	ParentID    string `json:"parentId"`
	ParentLogin string `json:"parentLogin,omitempty"`
	ParentText  string `json:"parentText,omitempty"`
}

// Layout is the output of the external layout pass. Height 0 means not yet
// available.
type Layout struct {
	Height int `json:"height,omitempty"`
}

// Entry is the normalized form every message takes before entering the
// measurement pipeline.
type Entry struct {
	ID           string
	Channel      string
	UserID       string
	Login        string
	DisplayName  string
	Color        string
	Text         string
	Badges       []string
	EmoteCount   int
	Reply        *Reply
	FirstMessage bool
	Timestamp    time.Time

	// PrecomputedHeight is the layout service height; 0 when absent.
	PrecomputedHeight int
	// Structured is true when the entry came from a Structured message.
	Structured bool
}

// HasIdentity reports whether the entry can be keyed across list changes.
func (e Entry) HasIdentity() bool { return e.ID != "" }

// Author returns the name to show for the sender.
func (e Entry) Author() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Login
}

// Normalize converts a Message into an Entry. Legacy lines that cannot be
// parsed keep their raw text and have no identity.
func Normalize(m Message) Entry {
	switch v := m.(type) {
	case Structured:
		return fromStructured(v)
	case *Structured:
		if v == nil {
			return Entry{}
		}
		return fromStructured(*v)
	case Legacy:
		return fromLegacy(v.Raw)
	case *Legacy:
		if v == nil {
			return Entry{}
		}
		return fromLegacy(v.Raw)
	default:
		return Entry{}
	}
}

// NormalizeAll normalizes a batch in order.
func NormalizeAll(ms []Message) []Entry {
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		out = append(out, Normalize(m))
	}
	return out
}

func fromStructured(s Structured) Entry {
	height := s.Layout.Height
	if height < 0 {
		height = 0
	}
	return Entry{
		ID:                s.ID,
		Channel:           s.Channel,
		UserID:            s.UserID,
		Login:             s.Login,
		DisplayName:       s.DisplayName,
		Color:             s.Color,
		Text:              s.Text,
		Badges:            s.Badges,
		EmoteCount:        len(s.Emotes),
		Reply:             s.Reply,
		FirstMessage:      s.FirstMessage,
		Timestamp:         s.Timestamp,
		PrecomputedHeight: height,
		Structured:        true,
	}
}

func fromLegacy(raw string) Entry {
	line, err := ParseLine(raw)
	if err != nil || line.Command != "PRIVMSG" {
		return Entry{Text: raw}
	}

	e := Entry{
		ID:           line.Tags["id"],
		Channel:      line.Channel(),
		UserID:       line.Tags["user-id"],
		Login:        line.Nick,
		DisplayName:  line.Tags["display-name"],
		Color:        line.Tags["color"],
		Text:         line.Trailing,
		Badges:       parseBadges(line.Tags["badges"]),
		EmoteCount:   countEmoteSpans(line.Tags["emotes"]),
		FirstMessage: line.Tags["first-msg"] == "1",
		Timestamp:    line.SentAt(),
	}
	if parent := line.Tags["reply-parent-msg-id"]; parent != "" {
		e.Reply = &Reply{
			ParentID:    parent,
			ParentLogin: line.Tags["reply-parent-user-login"],
			ParentText:  line.Tags["reply-parent-msg-body"],
		}
	}
	// ACTION lines arrive wrapped in \x01ACTION ...\x01.
	if len(e.Text) > 8 && e.Text[0] == 0x01 && e.Text[len(e.Text)-1] == 0x01 {
		e.Text = e.Text[8 : len(e.Text)-1]
	}
	if !utf8.ValidString(e.Text) {
		e.Text = string([]rune(e.Text))
	}
	return e
}
