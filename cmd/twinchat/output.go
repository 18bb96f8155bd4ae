package main

import (
	"fmt"
	"os"
)

// ANSI escapes used by the status helpers. The --no-color flag disables
// them all.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func paint(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

// Status output goes to stderr so command results on stdout stay
// machine-readable.
func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiCyan, "→ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
