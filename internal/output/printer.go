// Package output formats results of the non-interactive commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to color output. Auto follows NO_COLOR, a
// dumb TERM and whether stdout is a terminal.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return !color.NoColor
}

type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func NewPrinter(out, errOut io.Writer, mode ColorMode) *Printer {
	return &Printer{out: out, err: errOut, useColors: ResolveColors(mode)}
}

func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) paint(c *color.Color) *color.Color {
	if p.useColors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *Printer) Info(format string, args ...any) {
	p.paint(color.New(color.FgCyan)).Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		p.paint(color.New(color.FgGreen)).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		p.paint(color.New(color.FgYellow)).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

func (p *Printer) Error(format string, args ...any) {
	if p.useColors {
		p.paint(color.New(color.FgRed)).Fprintf(p.err, "✗ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
}

func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a title underlined to its width.
func (p *Printer) Header(title string) {
	line := strings.Repeat("─", len([]rune(title)))
	if !p.useColors {
		line = strings.Repeat("-", len([]rune(title)))
	}
	p.paint(color.New(color.Bold)).Fprintf(p.out, "\n%s\n", title)
	fmt.Fprintf(p.out, "%s\n", line)
}

// Field prints an indented "label: value" line, skipping empty values.
func (p *Printer) Field(label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(p.out, "  %s %s\n", p.Dim(label+":"), value)
}

func (p *Printer) Bold(text string) string {
	return p.paint(color.New(color.Bold)).Sprint(text)
}

func (p *Printer) Dim(text string) string {
	return p.paint(color.New(color.Faint)).Sprint(text)
}

// Status renders a fetch status as a short badge.
func (p *Printer) Status(status string) string {
	if !p.useColors {
		return "[" + status + "]"
	}
	switch status {
	case "succeeded":
		return p.paint(color.New(color.FgGreen)).Sprint("●") + " " + status
	case "failed":
		return p.paint(color.New(color.FgRed)).Sprint("●") + " " + status
	case "loading":
		return p.paint(color.New(color.FgYellow)).Sprint("●") + " " + status
	default:
		return "○ " + status
	}
}
