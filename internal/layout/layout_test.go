package layout

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/message"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name   string
		entry  message.Entry
		width  int
		opts   Options
		height int
	}{
		{"short", message.Entry{Login: "amy", Text: "hi"}, 40, Options{}, 1},
		{"wraps", message.Entry{Login: "amy", Text: strings.TrimSpace(strings.Repeat("word ", 10))}, 20, Options{}, 3},
		{"reply adds header", message.Entry{Login: "amy", Text: "hi", Reply: &message.Reply{ParentLogin: "bo"}}, 40, Options{}, 2},
		{"first message banner", message.Entry{Login: "amy", Text: "hi", FirstMessage: true}, 40, Options{}, 2},
		{"deleted is one line", message.Entry{Login: "amy", Text: strings.Repeat("x", 200), Reply: &message.Reply{}}, 20, Options{Deleted: true}, 1},
		{"no width", message.Entry{Login: "amy", Text: strings.Repeat("x", 200)}, 0, Options{}, 1},
		{"empty", message.Entry{}, 10, Options{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Compose(tt.entry, tt.width, tt.opts)
			assert.Equal(t, tt.height, b.Height())
			if tt.width > 0 {
				for _, l := range b.Lines {
					assert.LessOrEqual(t, len([]rune(l)), tt.width)
				}
			}
		})
	}
}

func TestCompose_Prefix(t *testing.T) {
	e := message.Entry{Login: "amy", DisplayName: "Amy", Badges: []string{"moderator"}, Text: "hello"}
	b := Compose(e, 80, Options{})
	assert.Equal(t, "M Amy: ", b.Prefix)
	assert.Equal(t, "M ", b.Glyph)
	assert.Equal(t, "Amy: ", b.Name)
	assert.Empty(t, b.Stamp)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, "M Amy: hello", b.Lines[0])

	b = Compose(e, 80, Options{Timestamps: true})
	assert.Len(t, b.Prefix, len("M Amy: ")+len(timestampFormat), "blank gutter for zero time")

	e.Timestamp = time.Date(2024, 1, 1, 9, 5, 0, 0, time.Local)
	b = Compose(e, 80, Options{Timestamps: true})
	assert.True(t, strings.HasPrefix(b.Prefix, "09:05 "))
	assert.Equal(t, "09:05 ", b.Stamp)
}

func TestCompose_ReplyHeaderTruncated(t *testing.T) {
	e := message.Entry{Login: "amy", Text: "yes", Reply: &message.Reply{ParentLogin: "bo", ParentText: strings.Repeat("long ", 20)}}
	b := Compose(e, 20, Options{})
	assert.True(t, strings.HasPrefix(b.Reply, "↳ replying to @bo"))
	assert.True(t, strings.HasSuffix(b.Reply, "…"))
}

func TestBadgeGlyph(t *testing.T) {
	assert.Equal(t, "B", BadgeGlyph("broadcaster"))
	assert.Equal(t, "S", BadgeGlyph("founder"))
	assert.Equal(t, "*", BadgeGlyph("glhf-pledge"))
}

func TestService_HeightMatchesCompose(t *testing.T) {
	s, err := New(16)
	require.NoError(t, err)
	s.SetWidth(20)

	m := message.Structured{ID: "1", Login: "amy", Text: strings.Repeat("word ", 10), FirstMessage: true}
	want := Compose(message.Normalize(m), 20, Options{}).Height()
	assert.Equal(t, want, s.Height(m))
	assert.Equal(t, want, s.Rows(message.Normalize(m), false).Height())

	s.Apply(&m)
	assert.Equal(t, want, m.Layout.Height)
	s.Apply(nil)
}

func TestService_CacheKeyedByWidthAndSettings(t *testing.T) {
	s, err := New(16)
	require.NoError(t, err)
	m := message.Structured{Login: "amy", Text: strings.Repeat("word ", 10)}

	s.SetWidth(20)
	narrow := s.Height(m)
	assert.Equal(t, 1, s.CacheLen())
	assert.Equal(t, narrow, s.Height(m))
	assert.Equal(t, 1, s.CacheLen(), "second lookup hits")

	s.SetWidth(200)
	assert.Less(t, s.Height(m), narrow)
	assert.Equal(t, 2, s.CacheLen())

	s.SetTimestamps(true)
	s.Height(m)
	assert.Equal(t, 3, s.CacheLen())
	assert.True(t, s.Options(true).Deleted)
	assert.True(t, s.Options(false).Timestamps)

	s.Purge()
	assert.Zero(t, s.CacheLen())
}

func TestService_NegativeWidth(t *testing.T) {
	s, err := New(0)
	require.NoError(t, err)
	s.SetWidth(-4)
	assert.Zero(t, s.Width())
	assert.Equal(t, 1, s.Height(message.Structured{Text: strings.Repeat("x", 500)}))
}
