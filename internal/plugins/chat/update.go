package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/schedule"
)

// Update handles messages. Every update ends with a paint so the rows the
// user sees have been measured before the next frame.
func (p *Plugin) Update(m tea.Msg) (plugin.Plugin, tea.Cmd) {
	var cmds []tea.Cmd

	switch m := m.(type) {
	case schedule.FireMsg:
		p.sched.Handle(m)

	case plugin.ResizeMsg:
		p.width, p.height = m.Width, m.Height
		p.list.SetViewport(m.Width, m.Height)

	case LoadedMsg:
		if plugin.IsStale(p.ctx, m) {
			return p, nil
		}
		cmds = append(cmds, p.handleLoaded(m))

	case EventsMsg:
		cmds = append(cmds, p.handleEvents(m))

	case tea.KeyMsg:
		cmds = append(cmds, p.handleKey(m))

	case tea.MouseMsg:
		cmds = append(cmds, p.handleMouse(m))

	default:
		if p.prompt.IsOpen() {
			cmds = append(cmds, p.prompt.Update(m))
		}
	}

	p.paint()
	cmds = append(cmds, p.sched.Cmd())
	return p, tea.Batch(cmds...)
}

func (p *Plugin) handleKey(m tea.KeyMsg) tea.Cmd {
	if p.prompt.IsOpen() {
		// only the prompt's own commands; everything else is typed text
		switch id, _ := p.keys.Lookup(m.String(), contextJump); id {
		case "cancel":
			return p.cmdCancelPrompt()
		case "confirm":
			return p.cmdConfirmPrompt()
		}
		return p.prompt.Update(m)
	}
	cmd, _ := p.keys.Handle(m, contextList)
	return cmd
}

// handleMouse expects Y relative to the top of the list.
func (p *Plugin) handleMouse(m tea.MouseMsg) tea.Cmd {
	if p.prompt.IsOpen() {
		return nil
	}
	switch m.Button {
	case tea.MouseButtonWheelUp:
		p.list.ScrollBy(-wheelStep)
	case tea.MouseButtonWheelDown:
		p.list.ScrollBy(wheelStep)
	case tea.MouseButtonLeft:
		if m.Action != tea.MouseActionPress {
			return nil
		}
		if p.list.State().Paused && m.Y == p.height-1 {
			// the unseen banner sits on the last row
			return p.cmdResume()
		}
		if i, ok := p.list.List().IndexAt(m.Y); ok {
			if e, ok := p.list.Entry(i); ok && e.ID != "" {
				p.selected = e.ID
			}
		}
	}
	return nil
}
