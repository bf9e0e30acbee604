// Package demo generates a synthetic chat feed for trying the viewer without
// a live connection.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/source"
)

const kind = "demo"

// DefaultRate is the delay between generated messages.
const DefaultRate = 400 * time.Millisecond

// backfillSize is large enough to count as a bulk load.
const backfillSize = 60

func init() {
	source.Register(kind, func(o source.Options) (source.Source, error) {
		return New(o.Channel, o.Rate, o.Seed), nil
	})
}

type chatter struct {
	id, login, color string
	badges           []string
}

var chatters = []chatter{
	{"1001", "streamer", "#9146FF", []string{"broadcaster"}},
	{"1002", "modkat", "#00AD03", []string{"moderator", "subscriber"}},
	{"1003", "lurker42", "#1E90FF", nil},
	{"1004", "vipviolet", "#EE82EE", []string{"vip"}},
	{"1005", "subzero", "#FF4500", []string{"subscriber"}},
	{"1006", "newbie", "#DAA520", nil},
}

var phrases = []string{
	"hello chat",
	"that was a clean play",
	"LUL",
	"Kappa Kappa Kappa",
	"can someone explain what just happened? I tabbed out for a second and now everything is on fire",
	"gg",
	"first time catching the stream live, this is great",
	"PogChamp PogChamp",
	"what's the song?",
	"the virtualized list should keep my place when I scroll up to read this long message and more keeps arriving below it",
}

// Source produces messages at a fixed rate.
type Source struct {
	channel string
	rate    time.Duration

	mu     sync.Mutex
	rng    *rand.Rand
	recent []message.Entry
	seen   map[string]bool
}

// New creates a demo feed. A zero seed picks a random one.
func New(channel string, rate time.Duration, seed uint64) *Source {
	if channel == "" {
		channel = "demo"
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Source{
		channel: channel,
		rate:    rate,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		seen:    map[string]bool{},
	}
}

func (s *Source) Kind() string { return kind }

// Backfill returns a burst of history.
func (s *Source) Backfill(context.Context) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]message.Message, 0, backfillSize)
	base := time.Now().Add(-time.Duration(backfillSize) * s.rate)
	for i := range backfillSize {
		out = append(out, s.next(base.Add(time.Duration(i)*s.rate)))
	}
	return out, nil
}

// Watch emits one message per tick and an occasional deletion.
func (s *Source) Watch(ctx context.Context) (<-chan source.Event, error) {
	events := make(chan source.Event, 8)
	go func() {
		defer close(events)
		ticker := time.NewTicker(s.rate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !source.Send(ctx, events, s.Tick(now)) {
					return
				}
			}
		}
	}()
	return events, nil
}

// Tick produces the event for one step of the feed.
func (s *Source) Tick(now time.Time) source.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) > 5 && s.rng.IntN(40) == 0 {
		victim := s.recent[s.rng.IntN(len(s.recent))]
		return source.Event{Type: source.EventDeleted, ID: victim.ID}
	}
	return source.Event{Type: source.EventMessages, Messages: []message.Message{s.next(now)}}
}

func (s *Source) next(at time.Time) message.Message {
	c := chatters[s.rng.IntN(len(chatters))]
	text := phrases[s.rng.IntN(len(phrases))]
	id := uuid.NewString()

	var reply *message.Reply
	if len(s.recent) > 0 && s.rng.IntN(6) == 0 {
		parent := s.recent[s.rng.IntN(len(s.recent))]
		reply = &message.Reply{ParentID: parent.ID, ParentLogin: parent.Login, ParentText: parent.Text}
	}
	first := !s.seen[c.id] && c.login == "newbie"
	s.seen[c.id] = true

	var m message.Message
	if s.rng.IntN(2) == 0 {
		m = message.Structured{
			ID:           id,
			Channel:      s.channel,
			UserID:       c.id,
			Login:        c.login,
			DisplayName:  c.login,
			Color:        c.color,
			Text:         text,
			Badges:       c.badges,
			Emotes:       emotes(text),
			Reply:        reply,
			FirstMessage: first,
			Timestamp:    at,
		}
	} else {
		m = message.Legacy{Raw: legacyLine(s.channel, id, c, text, reply, first, at)}
	}

	s.recent = append(s.recent, message.Normalize(m))
	if len(s.recent) > 50 {
		s.recent = s.recent[1:]
	}
	return m
}

func emotes(text string) []message.Emote {
	var out []message.Emote
	pos := 0
	for _, word := range strings.Split(text, " ") {
		switch word {
		case "Kappa", "LUL", "PogChamp":
			out = append(out, message.Emote{ID: word, Name: word, Start: pos, End: pos + len(word) - 1})
		}
		pos += len(word) + 1
	}
	return out
}

func legacyLine(channel, id string, c chatter, text string, reply *message.Reply, first bool, at time.Time) string {
	tags := []string{
		"id=" + id,
		"user-id=" + c.id,
		"display-name=" + c.login,
		"color=" + c.color,
		fmt.Sprintf("tmi-sent-ts=%d", at.UnixMilli()),
	}
	if len(c.badges) > 0 {
		badges := make([]string, len(c.badges))
		for i, b := range c.badges {
			badges[i] = b + "/1"
		}
		tags = append(tags, "badges="+strings.Join(badges, ","))
	}
	if spans := emoteTag(text); spans != "" {
		tags = append(tags, "emotes="+spans)
	}
	if first {
		tags = append(tags, "first-msg=1")
	}
	if reply != nil {
		tags = append(tags,
			"reply-parent-msg-id="+reply.ParentID,
			"reply-parent-user-login="+reply.ParentLogin,
			"reply-parent-msg-body="+escapeTag(reply.ParentText),
		)
	}
	return fmt.Sprintf("@%s :%s!%s@%s.tmi.twitch.tv PRIVMSG #%s :%s",
		strings.Join(tags, ";"), c.login, c.login, c.login, channel, text)
}

func emoteTag(text string) string {
	var groups []string
	for _, e := range emotes(text) {
		groups = append(groups, fmt.Sprintf("%s:%d-%d", e.ID, e.Start, e.End))
	}
	return strings.Join(groups, "/")
}

var tagEscaper = strings.NewReplacer(`\`, `\\`, ";", `\:`, " ", `\s`, "\r", `\r`, "\n", `\n`)

func escapeTag(v string) string { return tagEscaper.Replace(v) }
