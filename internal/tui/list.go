package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheuskafuri/postview/internal/model"
)

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func renderListItem(p model.Post, author string, selected bool, width int) string {
	if width < 10 {
		width = 30
	}

	var title string
	if selected {
		title = itemSelectedStyle.Render("> " + truncateStr(p.Title, width-4))
	} else {
		title = itemTitleStyle.Render("  " + truncateStr(p.Title, width-4))
	}

	if author == "" {
		author = fmt.Sprintf("user %d", p.UserID)
	}
	meta := "  " + itemAuthorStyle.Render(truncateStr(author, width-12)) + " " + itemMetaStyle.Render(fmt.Sprintf("· #%d", p.ID))

	return title + "\n" + meta
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// renderList draws the window of posts around cursor. footer, when set, is
// shown under the last item once it is visible.
func renderList(posts []model.Post, authors map[int]string, cursor, height, width int, footer string) string {
	if len(posts) == 0 {
		return lipglossCenter("No posts found", width, height)
	}

	// Each item is 2 lines + 1 blank line = 3 lines
	itemHeight := 3
	visible := height / itemHeight
	if footer != "" && visible > 1 {
		visible--
	}
	if visible < 1 {
		visible = 1
	}

	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := start + visible
	if end > len(posts) {
		end = len(posts)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(renderListItem(posts[i], authors[posts[i].UserID], i == cursor, width))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if footer != "" && end == len(posts) {
		b.WriteString("\n\n" + itemMetaStyle.Render("  "+footer))
	}

	return b.String()
}

func lipglossCenter(s string, width, height int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat("\n", height/3) + strings.Repeat(" ", pad) + s
}
