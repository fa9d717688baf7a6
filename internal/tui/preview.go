package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/postview/internal/model"
)

// commentsView is what the detail pane knows about a post's comments.
type commentsView struct {
	loading  bool
	err      error
	comments []model.Comment
	loaded   bool
}

func renderPreview(post *model.Post, author *model.User, comments commentsView, width, height, scroll int) string {
	if post == nil {
		return lipglossCenter("Select a post", width, height)
	}

	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := previewTitleStyle.Width(contentWidth).Render(post.Title)

	byline := fmt.Sprintf("by user %d", post.UserID)
	if author != nil {
		byline = fmt.Sprintf("by %s (@%s)", author.Name, author.Username)
	}
	by := previewAuthorStyle.Render(byline + " · #" + fmt.Sprint(post.ID))

	body := previewBodyStyle.Width(contentWidth).Render(wrapText(post.Body, contentWidth))

	parts := []string{title, by, body}
	parts = append(parts, renderComments(comments, contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	lines := strings.Split(content, "\n")
	if scroll > 0 && scroll < len(lines) {
		lines = lines[scroll:]
	}

	if len(lines) < height {
		lines = append(lines, make([]string, height-len(lines))...)
	} else if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func renderComments(c commentsView, width int) string {
	switch {
	case c.loading:
		return commentHeaderStyle.Render("Loading comments...")
	case c.err != nil:
		return commentHeaderStyle.Render("Comments unavailable: " + c.err.Error())
	case !c.loaded:
		return commentHeaderStyle.Render("enter to show comments")
	case len(c.comments) == 0:
		return commentHeaderStyle.Render("No comments")
	}

	var b strings.Builder
	b.WriteString(commentHeaderStyle.Render(fmt.Sprintf("%d comments", len(c.comments))))
	for _, cm := range c.comments {
		b.WriteString("\n\n")
		b.WriteString(commentNameStyle.Render(truncateStr(cm.Name, width)))
		b.WriteString("\n")
		b.WriteString(itemMetaStyle.Render(cm.Email))
		b.WriteString("\n")
		b.WriteString(previewBodyStyle.Render(wrapText(cm.Body, width)))
	}
	return b.String()
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
		} else {
			line += " " + w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
