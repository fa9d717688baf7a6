package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/postview/internal/state"
)

type statusInfo struct {
	shown    int
	total    int
	query    string
	status   state.Status
	lastSync string
	offline  bool
}

func renderStatusBar(info statusInfo, width int, hints string) string {
	left := fmt.Sprintf(" %d posts", info.total)
	if info.query != "" {
		left = fmt.Sprintf(" %d of %d posts · %q", info.shown, info.total, info.query)
	}
	if info.status == state.StatusLoading {
		left += " (loading...)"
	}
	if info.offline {
		left += " · offline"
	} else if info.lastSync != "" {
		left += " · synced " + info.lastSync
	}

	right := " " + hints + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}

func renderBottomBar(hints string, width int) string {
	right := " " + hints + " "
	gap := width - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(width).Render(fmt.Sprintf("%*s", gap, "") + right)
}
