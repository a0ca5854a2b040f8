// Package ui renders terminal output for the chippy CLI with Lipgloss.
//
// Output is printed once and the command exits; nothing here is
// interactive. Widths follow the terminal, clamped between
// MinTerminalWidth and MaxContentWidth.
package ui
