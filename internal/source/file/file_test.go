package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/source"
)

const (
	lineA = "@id=a;user-id=1 :amy!amy@amy.tmi PRIVMSG #chan :hello\n"
	lineB = "@id=b;user-id=2 :bo!bo@bo.tmi PRIVMSG #chan :hey\n"
	lineC = `{"id":"c","userId":"1","login":"amy","text":"structured","timestamp":"2024-01-01T00:00:00Z"}` + "\n"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func ids(ms []message.Message) []string {
	var out []string
	for _, m := range ms {
		out = append(out, message.Normalize(m).ID)
	}
	return out
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("", 10, nil)
	assert.Error(t, err)
}

func TestBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	writeFile(t, path, lineA+lineB+"\n:tmi PING :x\n"+lineC)

	s, err := New(path, 10, nil)
	require.NoError(t, err)
	ms, err := s.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ms))
	_, structured := ms[2].(message.Structured)
	assert.True(t, structured)
}

func TestBackfill_AppliesModerationAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	writeFile(t, path, lineA+lineB+lineC+`{"type":"delete","id":"b"}`+"\n")

	s, err := New(path, 1, nil)
	require.NoError(t, err)
	ms, err := s.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(ms))
}

func TestBackfill_MissingFile(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "none.log"), 10, nil)
	require.NoError(t, err)
	ms, err := s.Backfill(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestReadNew_KeepsPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	writeFile(t, path, lineA+lineB[:10])

	s, err := New(path, 10, nil)
	require.NoError(t, err)
	events, err := s.readNew()
	require.NoError(t, err)
	require.Len(t, events, 1)

	appendFile(t, path, lineB[10:])
	events, err = s.readNew()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"b"}, ids(events[0].Messages))
}

func TestReadNew_Truncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	writeFile(t, path, lineA+lineB)
	s, err := New(path, 10, nil)
	require.NoError(t, err)
	_, err = s.readNew()
	require.NoError(t, err)

	writeFile(t, path, lineC)
	events, err := s.readNew()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"c"}, ids(events[0].Messages))
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	writeFile(t, path, lineA)

	s, err := New(path, 10, nil)
	require.NoError(t, err)
	_, err = s.Backfill(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := s.Watch(ctx)
	require.NoError(t, err)

	appendFile(t, path, lineB+"@target-msg-id=a :tmi.twitch.tv CLEARMSG #chan :hello\n")

	var got []source.Event
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}
	assert.Equal(t, source.EventMessages, got[0].Type)
	assert.Equal(t, []string{"b"}, ids(got[0].Messages))
	assert.Equal(t, source.Event{Type: source.EventDeleted, ID: "a"}, got[1])

	cancel()
	for range events {
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, source.Kinds(), kind)
	s, err := source.Open(kind, source.Options{Path: "/tmp/x.log"})
	require.NoError(t, err)
	assert.Equal(t, kind, s.Kind())
	require.NoError(t, s.Close())
}
