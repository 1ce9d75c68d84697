// Package ui provides terminal output helpers for the pdf-fidelity CLI.
package ui

import (
	"github.com/fatih/color"
)

var (
	noColorFlag bool
	quietFlag   bool
)

// InitUI applies color and quiet settings. Quiet mode suppresses progress
// rendering so structured output stays clean.
func InitUI(noColor, quiet bool) {
	noColorFlag = noColor
	quietFlag = quiet

	if noColor {
		color.NoColor = true
	}
}

// Quiet reports whether progress rendering is suppressed
func Quiet() bool {
	return quietFlag
}
