package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/postview/internal/model"
)

func renderProfile(u *model.User, postCount int, loading bool, err string, width, height int) string {
	if u == nil {
		msg := "Loading profile..."
		if !loading {
			msg = "Profile unavailable"
			if err != "" {
				msg += ": " + err
			}
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpDimStyle.Render(msg))
	}

	name := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render(u.Name)
	handle := helpDimStyle.Render("@" + u.Username)

	row := func(label, value string) string {
		if value == "" {
			return ""
		}
		return profileLabelStyle.Render(label) + value
	}

	var rows []string
	for _, r := range []string{
		row("email", u.Email),
		row("phone", u.Phone),
		row("website", u.Website),
		row("address", formatAddress(u.Address)),
		row("geo", formatGeo(u.Address.Geo)),
		row("company", u.Company.Name),
		row("", italic(u.Company.CatchPhrase)),
		row("", dim(u.Company.BS)),
		row("posts", postCountLabel(postCount)),
	} {
		if r != "" {
			rows = append(rows, r)
		}
	}

	body := name + "  " + handle + "\n\n" + strings.Join(rows, "\n")
	card := profileCardStyle.Render(body)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}

func formatAddress(a model.Address) string {
	var parts []string
	for _, p := range []string{strings.TrimSpace(a.Street + " " + a.Suite), a.City, a.Zipcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatGeo(g model.Geo) string {
	if g.Lat == "" && g.Lng == "" {
		return ""
	}
	return g.Lat + ", " + g.Lng
}

func postCountLabel(n int) string {
	if n < 0 {
		return ""
	}
	if n == 1 {
		return "1 loaded"
	}
	return fmt.Sprintf("%d loaded", n)
}

func dim(s string) string {
	if s == "" {
		return ""
	}
	return helpDimStyle.Render(s)
}

func italic(s string) string {
	if s == "" {
		return ""
	}
	return lipgloss.NewStyle().Italic(true).Render(s)
}
