package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/chatview/internal/message"
)

// controlRecord is the JSON shape of a moderation event in a line feed.
type controlRecord struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Channel string `json:"channel"`
}

// DecodeLine turns one line of a feed into an event. JSON objects are either
// control records ({"type":"delete",...}) or structured messages; anything
// else is a legacy protocol line. Blank lines and protocol commands that are
// neither messages nor moderation return ok=false.
func DecodeLine(line string) (Event, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Event{}, false, nil
	}
	if strings.HasPrefix(line, "{") {
		return decodeJSON(line)
	}

	if ctl, ok := message.ParseControl(line); ok {
		if ctl.DeletedID != "" {
			return Event{Type: EventDeleted, ID: ctl.DeletedID}, true, nil
		}
		return Event{Type: EventClearUser, UserID: ctl.ClearedUserID}, true, nil
	}
	parsed, err := message.ParseLine(line)
	if err != nil {
		return Event{}, false, fmt.Errorf("parse line: %w", err)
	}
	if parsed.Command != "PRIVMSG" {
		return Event{}, false, nil
	}
	return Event{Type: EventMessages, Messages: []message.Message{message.Legacy{Raw: line}}}, true, nil
}

func decodeJSON(line string) (Event, bool, error) {
	var ctl controlRecord
	if err := json.Unmarshal([]byte(line), &ctl); err != nil {
		return Event{}, false, fmt.Errorf("decode record: %w", err)
	}
	switch ctl.Type {
	case "delete":
		return Event{Type: EventDeleted, ID: ctl.ID}, ctl.ID != "", nil
	case "clear":
		return Event{Type: EventClearUser, UserID: ctl.UserID}, ctl.UserID != "", nil
	case "channel":
		return Event{Type: EventChannel, Channel: ctl.Channel}, ctl.Channel != "", nil
	case "", "message":
	default:
		return Event{}, false, nil
	}

	var m message.Structured
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return Event{}, false, fmt.Errorf("decode message: %w", err)
	}
	return Event{Type: EventMessages, Messages: []message.Message{m}}, true, nil
}

// Merge folds consecutive message events into one so a burst of lines
// reaches the list as a single change.
func Merge(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if n := len(out); n > 0 && e.Type == EventMessages && out[n-1].Type == EventMessages {
			out[n-1].Messages = append(out[n-1].Messages, e.Messages...)
			continue
		}
		out = append(out, e)
	}
	return out
}
