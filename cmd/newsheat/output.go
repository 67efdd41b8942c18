package main

import (
	"fmt"
	"os"

	"github.com/doctadg/perpstrader-sub004/internal/news"
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

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func heatColor(score float64) string {
	s := fmt.Sprintf("%5.1f", score)
	switch {
	case score >= 70:
		return colorize(colorRed, s)
	case score >= 40:
		return colorize(colorYellow, s)
	default:
		return colorize(colorGreen, s)
	}
}

func trendArrow(trend news.Trend) string {
	switch trend {
	case news.TrendUp:
		return colorize(colorRed, "↑")
	case news.TrendDown:
		return colorize(colorGreen, "↓")
	default:
		return "→"
	}
}
