package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// splash is the full-screen view shown while there are no posts to list.
type splash struct {
	loading       bool
	spinner       string
	err           string
	offline       bool
	updateVersion string
}

func renderHomeScreen(width, height int, s splash) string {
	logoStyle := lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 4)
	keyStyle := lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorText)

	lines := []string{logoStyle.Render("p o s t v i e w"), "", ""}

	switch {
	case s.loading:
		lines = append(lines, s.spinner+" "+labelStyle.Render("Loading posts..."))
	case s.err != "":
		lines = append(lines, errorStyle.Render("Something went wrong"))
		lines = append(lines, helpDimStyle.Render(s.err))
		lines = append(lines, "")
		lines = append(lines, keyStyle.Render("[r]")+"  "+labelStyle.Render("Retry"))
	case s.offline:
		lines = append(lines, labelStyle.Render("Offline and nothing cached yet"))
		lines = append(lines, helpDimStyle.Render("run postview sync while online"))
	default:
		lines = append(lines, labelStyle.Render("No posts yet"))
		lines = append(lines, "")
		lines = append(lines, keyStyle.Render("[r]")+"  "+labelStyle.Render("Refresh"))
	}
	lines = append(lines, "", keyStyle.Render("[q]")+"  "+labelStyle.Render("Quit"))

	if s.updateVersion != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(colorAccent).Render("Update available: v"+s.updateVersion))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	contentHeight := strings.Count(content, "\n") + 1

	topPad := (height - contentHeight) / 3
	if topPad < 0 {
		topPad = 0
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top,
		strings.Repeat("\n", topPad)+content)
}
