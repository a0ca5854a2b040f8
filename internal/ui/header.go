package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed above command output.
type Header struct {
	Title   string            // e.g. "CHIPPY STATUS"
	Command string            // e.g. "chippy status --redis-url redis://cache:6379"
	Params  map[string]string // rendered sorted by key
	Width   int
}

func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

func (h *Header) Render() string {
	width := clampWidth(h.Width)

	top := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(strings.ToUpper(h.Title)),
		SubtitleStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return BoxStyle(width, PrimaryColor).Render(top)
	}

	keys := make([]string, 0, len(h.Params))
	for k := range h.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, KeyStyle.Render(k+":")+" "+ValueStyle.Render(h.Params[k]))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, top, Divider(width-6), strings.Join(lines, "\n"))
	return BoxStyle(width, PrimaryColor).Render(content)
}

func (h *Header) String() string {
	return h.Render()
}
