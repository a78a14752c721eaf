package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/kitabite/scribe/internal/rewrite"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// status is the single stderr line shape every symbol helper goes through.
func status(color, symbol, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, symbol+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { status(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { status(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { status(colorYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { status(colorCyan, "→", format, args...) }

// printCount prints one aligned line of a batch-run summary.
func printCount(label string, n int, unit string) {
	fmt.Fprintf(os.Stderr, "  %s %d %s\n", colorize(colorBold, label+":"), n, unit)
}

// tallyLines renders per-instruction hit counts, sorted by description so
// batch summaries are stable run to run.
func tallyLines(tally rewrite.Tally) []string {
	descs := make([]string, 0, len(tally))
	for desc := range tally {
		descs = append(descs, desc)
	}
	sort.Strings(descs)

	lines := make([]string, 0, len(descs))
	for _, desc := range descs {
		hits := "hits"
		if tally[desc] == 1 {
			hits = "hit"
		}
		lines = append(lines, fmt.Sprintf("%s: %d %s", desc, tally[desc], hits))
	}
	return lines
}

func printTally(tally rewrite.Tally) {
	for _, line := range tallyLines(tally) {
		fmt.Fprintf(os.Stderr, "  %s\n", colorize(colorBold, line))
	}
}
