package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/message"
)

type stubSource struct{ opts Options }

func (s *stubSource) Kind() string { return "stub" }
func (s *stubSource) Backfill(context.Context) ([]message.Message, error) {
	return nil, nil
}
func (s *stubSource) Watch(context.Context) (<-chan Event, error) { return nil, nil }
func (s *stubSource) Close() error                                { return nil }

func TestOpen(t *testing.T) {
	Register("stub", func(o Options) (Source, error) { return &stubSource{opts: o}, nil })
	Register("broken", func(Options) (Source, error) { return nil, errors.New("nope") })

	s, err := Open("stub", Options{})
	require.NoError(t, err)
	stub := s.(*stubSource)
	assert.Equal(t, message.DefaultBufferSize, stub.opts.BufferSize)
	assert.NotNil(t, stub.opts.Logger)

	_, err = Open("broken", Options{})
	assert.ErrorContains(t, err, "open broken source")

	_, err = Open("carrier-pigeon", Options{})
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.Contains(t, Kinds(), "stub")
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
		ok   bool
		err  bool
	}{
		{name: "blank", line: "  \n"},
		{name: "privmsg", line: "@id=1 :amy!amy@amy PRIVMSG #c :hi", ok: true,
			want: Event{Type: EventMessages, Messages: []message.Message{message.Legacy{Raw: "@id=1 :amy!amy@amy PRIVMSG #c :hi"}}}},
		{name: "clearmsg", line: "@target-msg-id=9 :tmi CLEARMSG #c :bad", ok: true, want: Event{Type: EventDeleted, ID: "9"}},
		{name: "clearchat user", line: "@target-user-id=7 :tmi CLEARCHAT #c :troll", ok: true, want: Event{Type: EventClearUser, UserID: "7"}},
		{name: "other command", line: ":tmi PING :x"},
		{name: "json delete", line: `{"type":"delete","id":"4"}`, ok: true, want: Event{Type: EventDeleted, ID: "4"}},
		{name: "json clear", line: `{"type":"clear","userId":"5"}`, ok: true, want: Event{Type: EventClearUser, UserID: "5"}},
		{name: "json channel", line: `{"type":"channel","channel":"xqc"}`, ok: true, want: Event{Type: EventChannel, Channel: "xqc"}},
		{name: "json unknown type", line: `{"type":"raid"}`},
		{name: "json delete without id", line: `{"type":"delete"}`, want: Event{Type: EventDeleted}},
		{name: "bad json", line: `{"id":`, err: true},
		{name: "json message", line: `{"id":"m","text":"hey","layout":{"height":3}}`, ok: true,
			want: Event{Type: EventMessages, Messages: []message.Message{message.Structured{ID: "m", Text: "hey", Layout: message.Layout{Height: 3}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := DecodeLine(tt.line)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	a := message.Legacy{Raw: "a"}
	b := message.Legacy{Raw: "b"}
	c := message.Legacy{Raw: "c"}
	got := Merge([]Event{
		{Type: EventMessages, Messages: []message.Message{a}},
		{Type: EventMessages, Messages: []message.Message{b}},
		{Type: EventDeleted, ID: "x"},
		{Type: EventMessages, Messages: []message.Message{c}},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []message.Message{a, b}, got[0].Messages)
	assert.Equal(t, EventDeleted, got[1].Type)
	assert.Equal(t, []message.Message{c}, got[2].Messages)
}

func TestSend(t *testing.T) {
	ch := make(chan Event, 1)
	assert.True(t, Send(context.Background(), ch, Event{Type: EventDeleted}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Send(ctx, ch, Event{}), "full channel and done context")
}
