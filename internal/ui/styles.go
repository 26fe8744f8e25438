package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#4da3ff") // Cohesion blue accent
	Success    = lipgloss.Color("#4caf50")
	Error      = lipgloss.Color("#f44336")
	Warning    = lipgloss.Color("#F59E0B")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
)

// Text styles
var (
	SelfStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	PeerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Foreground)

	ConnectedStyle = lipgloss.NewStyle().
			Foreground(Success)

	DisconnectedStyle = lipgloss.NewStyle().
				Foreground(Error)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

// CodeBoxStyle frames the shared buffer when it is printed.
var CodeBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Muted).
	Padding(0, 1)

// ShortID trims a client id for display; four characters match what
// members see of each other everywhere in the UI.
func ShortID(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}

func PrintError(msg string) {
	fmt.Printf("%s\n", ErrorStyle.Render("✗ "+msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s\n", MutedStyle.Render(msg))
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
