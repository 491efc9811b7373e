package ledger

import "strings"

// BarWidth is the default width of a count bar.
const BarWidth = 10

const (
	barFilled = "█"
	barEmpty  = "·"
)

// Bar renders n as filled units out of width, saturating at width.
func Bar(n, width int) string {
	if width <= 0 {
		width = BarWidth
	}
	n = max(0, min(n, width))
	return strings.Repeat(barFilled, n) + strings.Repeat(barEmpty, width-n)
}
