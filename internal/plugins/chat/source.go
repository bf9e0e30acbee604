package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/msg"
	"github.com/marcus/chatview/internal/source"
	"github.com/marcus/chatview/internal/state"
)

// LoadedMsg carries the backfill and the live event channel.
type LoadedMsg struct {
	Epoch    uint64
	Messages []message.Message
	Events   <-chan source.Event
	Err      error
}

// GetEpoch implements plugin.EpochMessage.
func (m LoadedMsg) GetEpoch() uint64 { return m.Epoch }

// EventsMsg carries a merged batch of live source events.
type EventsMsg struct {
	Events []source.Event
	// Closed is set when the source stopped.
	Closed bool
}

// load backfills and then starts the watch, so nothing is delivered twice.
func (p *Plugin) load(ctx context.Context, epoch uint64) tea.Cmd {
	src := p.src
	return func() tea.Msg {
		ms, err := src.Backfill(ctx)
		if err != nil {
			return LoadedMsg{Epoch: epoch, Err: err}
		}
		ch, err := src.Watch(ctx)
		return LoadedMsg{Epoch: epoch, Messages: ms, Events: ch, Err: err}
	}
}

// listen waits for the next event, then drains whatever else is queued.
func listen(ch <-chan source.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return EventsMsg{Closed: true}
		}
		batch := []source.Event{e}
		for len(batch) < maxBatch {
			select {
			case e, ok := <-ch:
				if !ok {
					return EventsMsg{Events: source.Merge(batch), Closed: true}
				}
				batch = append(batch, e)
			default:
				return EventsMsg{Events: source.Merge(batch)}
			}
		}
		return EventsMsg{Events: source.Merge(batch)}
	}
}

func (p *Plugin) handleLoaded(m LoadedMsg) tea.Cmd {
	if m.Err != nil {
		p.logger.Error("load source", "kind", p.src.Kind(), "err", m.Err)
		return msg.ShowError("Source failed: " + m.Err.Error())
	}
	p.logger.Debug("backfill", "kind", p.src.Kind(), "messages", len(m.Messages))
	p.events = m.Events
	if len(m.Messages) > 0 {
		p.buf.Append(m.Messages...)
		p.list.SetMessages(p.buf.Messages())
	}
	return listen(p.events)
}

func (p *Plugin) handleEvents(m EventsMsg) tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range m.Events {
		if p.ctx.Metrics != nil {
			p.ctx.Metrics.SourceEvent(string(e.Type))
		}
		if cmd := p.apply(e); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if m.Closed {
		p.logger.Info("source closed", "kind", p.src.Kind())
		p.events = nil
	} else {
		cmds = append(cmds, listen(p.events))
	}
	return tea.Batch(cmds...)
}

func (p *Plugin) apply(e source.Event) tea.Cmd {
	switch e.Type {
	case source.EventMessages:
		if len(e.Messages) > 0 {
			p.buf.Append(e.Messages...)
			p.list.SetMessages(p.buf.Messages())
		}
	case source.EventDeleted:
		p.list.MarkDeleted(e.ID)
	case source.EventClearUser:
		p.list.ClearUser(e.UserID)
	case source.EventChannel:
		return p.switchChannel(e.Channel)
	case source.EventError:
		p.logger.Warn("source error", "kind", p.src.Kind(), "err", e.Err)
		if e.Err != nil {
			return msg.ShowError(e.Err.Error())
		}
	}
	return nil
}

// switchChannel empties the list for a new channel. Cosmetics are scoped per
// channel and start cold.
func (p *Plugin) switchChannel(channel string) tea.Cmd {
	if channel == "" || channel == p.channel {
		return nil
	}
	p.logger.Info("channel switch", "from", p.channel, "to", channel)
	p.channel = channel
	p.ctx.Epoch++
	p.selected = ""
	p.prompt.Close()
	p.buf.Reset()
	p.list.Reset()
	if p.ctx.Cosmetics != nil {
		p.ctx.Cosmetics.Reset(channel)
	}
	if err := state.SetLastChannel(channel); err != nil {
		p.logger.Warn("save state", "err", err)
	}

	p.buf.Append(notice(channel, "now viewing "+channel))
	p.list.SetMessages(p.buf.Messages())

	return func() tea.Msg { return msg.ChannelMsg{Channel: channel} }
}

// notice builds a local system message.
func notice(channel, text string) message.Message {
	return message.Structured{
		ID:        uuid.NewString(),
		Channel:   channel,
		Text:      text,
		Timestamp: time.Now(),
	}
}
