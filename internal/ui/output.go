// Package ui renders colored status output. Everything goes to stderr so
// stdout stays reserved for the machine-readable account summary.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// center pads text on the left so it sits in the middle of width columns.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}

// Header prints a centered section banner.
func Header(text string) {
	fmt.Fprintln(os.Stderr)
	headerColor.Fprintln(os.Stderr, center(text, headerWidth))
	headerColor.Fprintln(os.Stderr, strings.Repeat("─", headerWidth))
}

// Step prints a numbered progress step.
func Step(current, total int, text string) {
	infoColor.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, text)
}

// Success prints a green checkmark line.
func Success(text string) {
	successColor.Fprintf(os.Stderr, "✓ %s\n", text)
}

// Info prints an informational line.
func Info(text string) {
	infoColor.Fprintf(os.Stderr, "• %s\n", text)
}

// Warning prints a yellow warning line.
func Warning(text string) {
	warningColor.Fprintf(os.Stderr, "⚠ %s\n", text)
}

// Error prints a red error line.
func Error(text string) {
	errorColor.Fprintf(os.Stderr, "✗ %s\n", text)
}
