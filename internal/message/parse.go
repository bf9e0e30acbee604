package message

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyLine is returned by ParseLine for blank input.
var ErrEmptyLine = errors.New("empty line")

// Line is a parsed IRCv3 protocol line.
type Line struct {
	Tags     map[string]string
	Nick     string
	Command  string
	Params   []string
	Trailing string
}

// Channel returns the first parameter without its leading '#'.
func (l Line) Channel() string {
	if len(l.Params) == 0 {
		return ""
	}
	return strings.TrimPrefix(l.Params[0], "#")
}

// SentAt returns the tmi-sent-ts tag as a time, or the zero time.
func (l Line) SentAt() time.Time {
	ms, err := strconv.ParseInt(l.Tags["tmi-sent-ts"], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ParseLine parses "@tags :prefix COMMAND params :trailing".
func ParseLine(raw string) (Line, error) {
	s := strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(s) == "" {
		return Line{}, ErrEmptyLine
	}

	line := Line{Tags: map[string]string{}}

	if strings.HasPrefix(s, "@") {
		end := strings.IndexByte(s, ' ')
		if end < 0 {
			return Line{}, errors.New("tags without command")
		}
		for _, kv := range strings.Split(s[1:end], ";") {
			k, v, _ := strings.Cut(kv, "=")
			if k != "" {
				line.Tags[k] = unescapeTag(v)
			}
		}
		s = strings.TrimLeft(s[end+1:], " ")
	}

	if strings.HasPrefix(s, ":") {
		end := strings.IndexByte(s, ' ')
		if end < 0 {
			return Line{}, errors.New("prefix without command")
		}
		prefix := s[1:end]
		if nick, _, ok := strings.Cut(prefix, "!"); ok {
			line.Nick = nick
		} else {
			line.Nick = prefix
		}
		s = strings.TrimLeft(s[end+1:], " ")
	}

	head, trailing, hasTrailing := strings.Cut(s, " :")
	if hasTrailing {
		line.Trailing = trailing
	}
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return Line{}, errors.New("missing command")
	}
	line.Command = strings.ToUpper(fields[0])
	line.Params = fields[1:]
	return line, nil
}

// Control is a moderation event carried by a legacy line.
type Control struct {
	// DeletedID is set for CLEARMSG.
	DeletedID string
	// ClearedUserID is set for CLEARCHAT targeting one user.
	ClearedUserID string
	// ClearedLogin is the login of the cleared user, when known.
	ClearedLogin string
}

// ParseControl recognises CLEARMSG and CLEARCHAT lines.
func ParseControl(raw string) (Control, bool) {
	line, err := ParseLine(raw)
	if err != nil {
		return Control{}, false
	}
	switch line.Command {
	case "CLEARMSG":
		id := line.Tags["target-msg-id"]
		return Control{DeletedID: id}, id != ""
	case "CLEARCHAT":
		uid := line.Tags["target-user-id"]
		return Control{ClearedUserID: uid, ClearedLogin: line.Trailing}, uid != "" || line.Trailing != ""
	}
	return Control{}, false
}

var tagUnescaper = strings.NewReplacer(`\s`, " ", `\:`, ";", `\\`, `\`, `\r`, "\r", `\n`, "\n")

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return tagUnescaper.Replace(v)
}

// parseBadges turns "broadcaster/1,subscriber/12" into ["broadcaster", "subscriber"].
func parseBadges(tag string) []string {
	if tag == "" {
		return nil
	}
	parts := strings.Split(tag, ",")
	badges := make([]string, 0, len(parts))
	for _, p := range parts {
		name, _, _ := strings.Cut(p, "/")
		if name != "" {
			badges = append(badges, name)
		}
	}
	return badges
}

// countEmoteSpans counts ranges in "25:0-4,12-16/1902:6-10" (3 here).
func countEmoteSpans(tag string) int {
	if tag == "" {
		return 0
	}
	n := 0
	for _, group := range strings.Split(tag, "/") {
		_, ranges, ok := strings.Cut(group, ":")
		if !ok || ranges == "" {
			continue
		}
		n += strings.Count(ranges, ",") + 1
	}
	return n
}
