package chat

import (
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/chatview/internal/message"
	"github.com/marcus/chatview/internal/msg"
	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/state"
)

// MissingTargetText is shown when a jump target left the buffer.
const MissingTargetText = "message no longer in history"

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

// Commands returns the available commands.
func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{ID: "resume", Name: "Live", Description: "Resume auto-scroll at the newest message", Category: plugin.CategoryNavigation, Context: contextList, Priority: 1, Handler: p.cmdResume},
		{ID: "jump-to-parent", Name: "Parent", Description: "Jump to the message the selection replies to", Category: plugin.CategoryNavigation, Context: contextList, Priority: 2, Handler: p.cmdJumpToParent},
		{ID: "jump-prompt", Name: "Jump", Description: "Jump to a message by id", Category: plugin.CategoryNavigation, Context: contextList, Priority: 3, Handler: p.cmdJumpPrompt},
		{ID: "select-prev", Name: "Prev", Description: "Select the previous message", Category: plugin.CategoryNavigation, Context: contextList, Priority: 4, Handler: p.selectBy(-1)},
		{ID: "select-next", Name: "Next", Description: "Select the next message", Category: plugin.CategoryNavigation, Context: contextList, Priority: 5, Handler: p.selectBy(1)},
		{ID: "copy-message", Name: "Copy", Description: "Copy the selected message", Category: plugin.CategoryActions, Context: contextList, Priority: 6, Handler: p.cmdCopy},
		{ID: "toggle-timestamps", Name: "Time", Description: "Toggle the timestamp gutter", Category: plugin.CategoryView, Context: contextList, Priority: 7, Handler: p.cmdToggleTimestamps},
		{ID: "scroll-up", Name: "Up", Description: "Scroll up one row", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.scrollBy(-1)},
		{ID: "scroll-down", Name: "Down", Description: "Scroll down one row", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.scrollBy(1)},
		{ID: "page-up", Name: "PgUp", Description: "Scroll up one page", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.page(-1)},
		{ID: "page-down", Name: "PgDn", Description: "Scroll down one page", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.page(1)},
		{ID: "scroll-top", Name: "Top", Description: "Scroll to the oldest message", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.cmdTop},
		{ID: "clear-selection", Name: "Clear", Description: "Clear the selection", Category: plugin.CategoryNavigation, Context: contextList, Handler: p.cmdClearSelection},
		{ID: "cancel", Name: "Cancel", Description: "Close the jump prompt", Category: plugin.CategoryActions, Context: contextJump, Priority: 2, Handler: p.cmdCancelPrompt},
		{ID: "confirm", Name: "Jump", Description: "Jump to the entered id", Category: plugin.CategoryActions, Context: contextJump, Priority: 1, Handler: p.cmdConfirmPrompt},
	}
}

func (p *Plugin) scrollBy(delta int) func() tea.Cmd {
	return func() tea.Cmd {
		p.list.ScrollBy(delta)
		return nil
	}
}

func (p *Plugin) page(dir int) func() tea.Cmd {
	return func() tea.Cmd {
		p.list.ScrollBy(dir * max(1, p.height-1))
		return nil
	}
}

func (p *Plugin) cmdTop() tea.Cmd {
	p.list.ScrollBy(-p.list.List().Offset())
	return nil
}

func (p *Plugin) cmdResume() tea.Cmd {
	p.selected = ""
	p.list.Resume()
	return nil
}

func (p *Plugin) cmdClearSelection() tea.Cmd {
	p.selected = ""
	return nil
}

// jump scrolls to id, or reports that it is gone. A failed jump leaves the
// pause state alone.
func (p *Plugin) jump(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	if !p.list.JumpTo(id) {
		return msg.ShowToast(MissingTargetText, msg.DefaultToastDuration)
	}
	p.selected = id
	return nil
}

func (p *Plugin) cmdJumpToParent() tea.Cmd {
	e, ok := p.replyTarget()
	if !ok {
		return msg.ShowToast("no reply selected", msg.DefaultToastDuration)
	}
	return p.jump(e.Reply.ParentID)
}

// replyTarget returns the selected entry, or the newest visible reply when
// nothing is selected.
func (p *Plugin) replyTarget() (message.Entry, bool) {
	if i, ok := p.selectedIndex(); ok {
		e, _ := p.list.Entry(i)
		return e, e.Reply != nil && e.Reply.ParentID != ""
	}
	rows := p.list.List().Visible()
	for i := len(rows) - 1; i >= 0; i-- {
		if e, ok := p.list.Entry(rows[i].Index); ok && e.Reply != nil && e.Reply.ParentID != "" {
			return e, true
		}
	}
	return message.Entry{}, false
}

func (p *Plugin) cmdJumpPrompt() tea.Cmd {
	return p.prompt.Open()
}

func (p *Plugin) cmdCancelPrompt() tea.Cmd {
	p.prompt.Close()
	return nil
}

func (p *Plugin) cmdConfirmPrompt() tea.Cmd {
	id := p.prompt.Value()
	p.prompt.Close()
	return p.jump(id)
}

func (p *Plugin) cmdCopy() tea.Cmd {
	i, ok := p.selectedIndex()
	if !ok {
		return msg.ShowToast("nothing selected", msg.DefaultToastDuration)
	}
	e, _ := p.list.Entry(i)
	text := e.Text
	if name := e.Author(); name != "" {
		text = name + ": " + text
	}
	if err := writeClipboard(text); err != nil {
		p.logger.Warn("clipboard", "err", err)
		return msg.ShowError("Copy failed: " + err.Error())
	}
	return msg.ShowToast("Copied message", 2*time.Second)
}

func (p *Plugin) cmdToggleTimestamps() tea.Cmd {
	on := !p.layout.Timestamps()
	p.layout.SetTimestamps(on)
	p.list.SetTimestamps(on)
	if err := state.SetShowTimestamps(on); err != nil {
		p.logger.Warn("save state", "err", err)
	}
	return nil
}

// selectedIndex resolves the selection to a current index.
func (p *Plugin) selectedIndex() (int, bool) {
	if p.selected == "" {
		return 0, false
	}
	return p.list.Oracle().IndexOf(p.selected)
}

// selectBy moves the selection by dir messages, starting from the newest
// visible row, and scrolls it into view.
func (p *Plugin) selectBy(dir int) func() tea.Cmd {
	return func() tea.Cmd {
		n := p.list.Len()
		if n == 0 {
			return nil
		}
		i, ok := p.selectedIndex()
		if !ok {
			rows := p.list.List().Visible()
			if len(rows) == 0 {
				return nil
			}
			i = rows[len(rows)-1].Index
		} else {
			i = min(max(0, i+dir), n-1)
		}
		e, _ := p.list.Entry(i)
		if e.ID == "" {
			// rows without identity can't be tracked across updates
			return nil
		}
		p.selected = e.ID
		p.reveal(i)
		return nil
	}
}

// reveal scrolls just enough to show the row at index.
func (p *Plugin) reveal(index int) {
	l := p.list.List()
	top := l.Start(index)
	bottom := top + l.SizeAt(index)
	switch {
	case top < l.Offset():
		p.list.ScrollBy(top - l.Offset())
	case bottom > l.Offset()+l.ClientHeight():
		p.list.ScrollBy(bottom - l.Offset() - l.ClientHeight())
	}
}
