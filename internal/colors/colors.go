// Package colors provides terminal color support for Travis CLI output.
package colors

import (
	"os"
	"strings"
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGray  = "\033[90m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
)

// colorEnabled determines if color output should be used
var colorEnabled = shouldUseColor()

// shouldUseColor determines if the terminal supports colors
func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	if term == "dumb" || term == "" {
		return false
	}

	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return true
}

// SetColorEnabled allows manual control of color output
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

// colorize applies color to text if colors are enabled
func colorize(text, color string) string {
	if !colorEnabled {
		return text
	}
	return color + text + ColorReset
}

func Red(text string) string {
	return colorize(text, BrightRed)
}

func Green(text string) string {
	return colorize(text, BrightGreen)
}

func Blue(text string) string {
	return colorize(text, BrightBlue)
}

func Yellow(text string) string {
	return colorize(text, BrightYellow)
}

func Gray(text string) string {
	return colorize(text, ColorGray)
}

func Bold(text string) string {
	return colorize(text, ColorBold)
}
