package styles

import "github.com/charmbracelet/lipgloss"

// Color palette - default dark theme
var (
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#3B82F6") // Blue
	Accent    = lipgloss.Color("#F59E0B") // Amber

	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")

	TextPrimary   = lipgloss.Color("#F9FAFB")
	TextSecondary = lipgloss.Color("#9CA3AF")
	TextMuted     = lipgloss.Color("#6B7280")
	TextSubtle    = lipgloss.Color("#4B5563")

	BgPrimary   = lipgloss.Color("#111827")
	BgSecondary = lipgloss.Color("#1F2937")
	BgTertiary  = lipgloss.Color("#374151")

	BorderActive = lipgloss.Color("#7C3AED")

	ToastSuccessTextColor = lipgloss.Color("#000000")
	ToastErrorTextColor   = lipgloss.Color("#FFFFFF")
)

// Text styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	Body = lipgloss.NewStyle().
		Foreground(TextPrimary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Subtle = lipgloss.NewStyle().
		Foreground(TextSubtle)

	KeyHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(BgTertiary).
		Padding(0, 1)

	Logo = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)
)

// Chat row styles
var (
	// Timestamp gutter
	Timestamp = lipgloss.NewStyle().
			Foreground(TextSubtle)

	// Reply context line above a threaded reply
	ReplyHeader = lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true)

	// Banner above a chatter's first message
	FirstMessage = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// Placeholder for moderated messages
	Deleted = lipgloss.NewStyle().
		Foreground(TextSubtle).
		Italic(true)

	// Row briefly highlighted after a reply jump
	Highlight = lipgloss.NewStyle().
			Background(BgTertiary)

	// Row under the selection cursor
	Selected = lipgloss.NewStyle().
			Background(BgSecondary)

	// Badge glyph before the author
	Badge = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	// "N new messages" bar shown while paused
	Unseen = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(Primary).
		Bold(true)
)

// Footer and header
var (
	Footer = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(BgSecondary)

	Header = lipgloss.NewStyle().
		Background(BgSecondary)

	// Pause indicator in the header
	StatusPaused = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusLive = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)
)

// Toast styles
var (
	ToastSuccess = lipgloss.NewStyle().
			Foreground(ToastSuccessTextColor).
			Background(Success).
			Padding(0, 1)

	ToastError = lipgloss.NewStyle().
			Foreground(ToastErrorTextColor).
			Background(Error).
			Padding(0, 1)
)

// Modal styles
var (
	ModalBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Background(BgSecondary).
			Padding(1, 2)

	ModalTitle = lipgloss.NewStyle().
			Foreground(TextPrimary).
			Bold(true).
			MarginBottom(1)
)

// Author returns the style for a chatter name. color is the chatter's chosen
// hex color; unreadable or missing colors fall back to a stable palette pick.
func Author(color, login string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ReadableColor(color, login)).
		Bold(true)
}
