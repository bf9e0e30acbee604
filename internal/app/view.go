package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/styles"
	"github.com/marcus/chatview/internal/ui"
)

const (
	headerHeight = 2 // header line plus spacing
	footerHeight = 1

	minWidth  = 20
	minHeight = 6
)

// View renders the entire application UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		msg := fmt.Sprintf("Terminal too small (%dx%d)\nMinimum: %dx%d",
			m.width, m.height, minWidth, minHeight)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			styles.Muted.Render(msg))
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderContent(m.width, m.contentHeight()))
	if m.showFooter {
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
	}

	bg := b.String()
	switch m.activeModal() {
	case ModalHelp:
		return ui.OverlayModal(bg, styles.ModalBox.Render(m.buildHelpContent()), m.width, m.height)
	case ModalDiagnostics:
		return ui.OverlayModal(bg, styles.ModalBox.Render(m.buildDiagnosticsContent()), m.width, m.height)
	}
	return bg
}

func (m Model) renderHeader() string {
	title := styles.Title.Render(" chatview")

	var status string
	if p := m.ActivePlugin(); p != nil {
		if sp, ok := p.(plugin.StatusProvider); ok {
			st := sp.Status()
			if st.Channel != "" {
				name := st.Channel
				if ctx := m.registry.Context(); ctx != nil && ctx.Cosmetics != nil {
					name = ctx.Cosmetics.ChannelName(st.Channel)
				}
				title += styles.Muted.Render(" / " + name)
			}
			if st.Live {
				status = styles.StatusLive.Render("LIVE")
			} else {
				status = styles.StatusPaused.Render("PAUSED")
			}
			if st.Detail != "" {
				status = styles.Subtle.Render(st.Detail) + " " + status
			}
		}
	}

	clock := styles.Muted.Render(m.clock.Format("15:04"))
	right := clock
	if status != "" {
		right = status + "  " + clock
	}
	spacing := max(m.width-lipgloss.Width(title)-lipgloss.Width(right)-1, 0)
	header := title + strings.Repeat(" ", spacing) + right + " "

	return styles.Header.Width(m.width).MaxWidth(m.width).Render(header)
}

func (m Model) renderContent(width, height int) string {
	p := m.ActivePlugin()
	if p == nil {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, styles.Muted.Render("No plugins loaded"))
	}
	if height == 0 {
		return ""
	}
	content := p.View(width, height)
	// MaxHeight truncates tall content so the header stays on screen.
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(content)
}

// renderFooter renders the bottom bar with key hints and status.
func (m Model) renderFooter() string {
	var status string
	if m.statusMsg != "" {
		toastStyle := styles.ToastSuccess
		if m.statusIsError {
			toastStyle = styles.ToastError
		}
		status = toastStyle.Render(m.statusMsg)
	}

	statusWidth := lipgloss.Width(status)
	hints := renderHintLineTruncated(m.footerHints(), m.width-statusWidth-2)
	spacing := max(m.width-lipgloss.Width(hints)-statusWidth, 0)
	footer := hints + strings.Repeat(" ", spacing) + status

	return styles.Footer.Width(m.width).MaxWidth(m.width).Render(footer)
}

type footerHint struct {
	keys  string
	label string
}

func (m Model) footerHints() []footerHint {
	p := m.ActivePlugin()
	if p == nil {
		return m.globalFooterHints()
	}
	hints := m.pluginFooterHints(p, m.activeContext)
	// global keys are typed text while the plugin has the keyboard
	if tic, ok := p.(plugin.TextInputConsumer); ok && tic.ConsumesTextInput() {
		return hints
	}
	return append(hints, m.globalFooterHints()...)
}

func (m Model) globalFooterHints() []footerHint {
	var hints []footerHint
	for _, b := range m.keymap.Help(keymap.GlobalContext, "toggle-help", "quit") {
		hints = append(hints, footerHint{keys: b.Help().Key, label: b.Help().Desc})
	}
	return hints
}

func (m Model) pluginFooterHints(p plugin.Plugin, context string) []footerHint {
	if context == "" || context == keymap.GlobalContext {
		return nil
	}
	keysByCmd := bindingKeysByCommand(m.keymap.BindingsForContext(context))

	type cmdWithPriority struct {
		cmd      plugin.Command
		keys     []string
		priority int
	}
	var cmds []cmdWithPriority
	for _, cmd := range p.Commands() {
		if cmd.Context != context {
			continue
		}
		keys := keysByCmd[cmd.ID]
		if len(keys) == 0 {
			continue
		}
		priority := cmd.Priority
		if priority == 0 {
			continue // not shown in the footer
		}
		cmds = append(cmds, cmdWithPriority{cmd, keys, priority})
	}
	sort.SliceStable(cmds, func(i, j int) bool {
		return cmds[i].priority < cmds[j].priority
	})

	hints := make([]footerHint, 0, len(cmds))
	for _, c := range cmds {
		hints = append(hints, footerHint{keys: c.keys[0], label: c.cmd.Name})
	}
	return hints
}

func bindingKeysByCommand(bindings []keymap.Binding) map[string][]string {
	keysByCmd := make(map[string][]string, len(bindings))
	for _, b := range bindings {
		keysByCmd[b.Command] = append(keysByCmd[b.Command], b.Key)
	}
	return keysByCmd
}

// renderHintLineTruncated renders hints but stops adding when maxWidth is exceeded.
func renderHintLineTruncated(hints []footerHint, maxWidth int) string {
	if len(hints) == 0 || maxWidth <= 0 {
		return ""
	}
	var result string
	for _, hint := range hints {
		if hint.keys == "" || hint.label == "" {
			continue
		}
		part := fmt.Sprintf("%s %s", styles.KeyHint.Render(hint.keys), hint.label)
		candidate := part
		if result != "" {
			candidate = result + "  " + part
		}
		if lipgloss.Width(candidate) > maxWidth {
			break
		}
		result = candidate
	}
	return result
}

// buildHelpContent lists the bindings of the global and active contexts.
func (m Model) buildHelpContent() string {
	var b strings.Builder

	b.WriteString(styles.ModalTitle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	b.WriteString(styles.Title.Render("Global"))
	b.WriteString("\n")
	m.renderBindingSection(&b, keymap.GlobalContext, nil)
	b.WriteString("\n")

	if p := m.ActivePlugin(); p != nil {
		ctx := p.FocusContext()
		if ctx != keymap.GlobalContext && ctx != "" && len(m.keymap.BindingsForContext(ctx)) > 0 {
			b.WriteString(styles.Title.Render(p.Name()))
			b.WriteString("\n")
			m.renderBindingSection(&b, ctx, p.Commands())
			b.WriteString("\n")
		}
	}

	b.WriteString(styles.Subtle.Render("Press ? or esc to close"))
	return b.String()
}

// renderBindingSection writes one line per command bound in context. Plugin
// commands supply their descriptions.
func (m Model) renderBindingSection(b *strings.Builder, context string, cmds []plugin.Command) {
	desc := make(map[string]string, len(cmds))
	for _, c := range cmds {
		desc[c.ID] = c.Description
	}

	var ids []string
	seen := make(map[string]bool)
	for _, binding := range m.keymap.BindingsForContext(context) {
		if !seen[binding.Command] {
			seen[binding.Command] = true
			ids = append(ids, binding.Command)
		}
	}

	for _, id := range ids {
		hb := m.keymap.Help(context, id)
		if len(hb) == 0 {
			continue
		}
		keys := hb[0].Keys()
		if len(keys) > 2 {
			keys = keys[:2]
		}
		name := hb[0].Help().Desc
		if d := desc[id]; d != "" {
			name = d
		}
		padded := fmt.Sprintf("%-11s", strings.Join(keys, ", "))
		fmt.Fprintf(b, "  %s %s\n", styles.Muted.Render(padded), name)
	}
}

// buildDiagnosticsContent lists plugins and their health checks.
func (m Model) buildDiagnosticsContent() string {
	var b strings.Builder

	b.WriteString(styles.ModalTitle.Render("Diagnostics"))
	b.WriteString("\n\n")
	b.WriteString(styles.Title.Render("Plugins"))
	b.WriteString("\n")

	plugins := m.registry.Plugins()
	for _, p := range plugins {
		fmt.Fprintf(&b, "  %s %s: active\n", lipgloss.NewStyle().Foreground(styles.Success).Render("✓"), p.Name())
		dp, ok := p.(plugin.DiagnosticProvider)
		if !ok {
			continue
		}
		for _, d := range dp.Diagnostics() {
			var color lipgloss.TerminalColor = styles.TextMuted
			switch d.Status {
			case "ok", "following":
				color = styles.Success
			case "warning", "paused":
				color = styles.Warning
			case "error":
				color = styles.Error
			}
			line := d.ID
			if d.Detail != "" {
				line += ": " + d.Detail
			} else if d.Status != "" {
				line += ": " + d.Status
			}
			fmt.Fprintf(&b, "    %s %s\n", lipgloss.NewStyle().Foreground(color).Render("•"), line)
		}
	}

	unavail := m.registry.Unavailable()
	ids := make([]string, 0, len(unavail))
	for id := range unavail {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s %s: %s\n", lipgloss.NewStyle().Foreground(styles.Error).Render("✗"), id, unavail[id])
	}
	if len(plugins) == 0 && len(unavail) == 0 {
		b.WriteString(styles.Muted.Render("  No plugins registered\n"))
	}

	b.WriteString("\n")
	b.WriteString(styles.Title.Render("Version"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  chatview: %s\n\n", styles.Muted.Render(m.version))

	b.WriteString(styles.Subtle.Render("Press ! or esc to close"))
	return b.String()
}
