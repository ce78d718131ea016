package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the terminal styling for command output. Rendering goes
// through a renderer bound to the command's writer, so output to a pipe or
// buffer carries no escape codes.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Size    lipgloss.Style
	Text    lipgloss.Style
	Divider lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213")),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true),
		Size: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),
		Text: r.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2),
		Divider: r.NewStyle().
			Foreground(lipgloss.Color("238")),
		Muted: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Success: r.NewStyle().
			Foreground(lipgloss.Color("76")),
		Warning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
}
