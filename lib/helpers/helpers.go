package helpers

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatNumberSpaces renders an integer with space thousand separators,
// the way prices and mileage are shown to Russian-speaking users.
func FormatNumberSpaces(n int64) string {
	p := message.NewPrinter(language.English)
	withComma := p.Sprintf("%d", n)
	return strings.ReplaceAll(withComma, ",", " ")
}

// FormatWonShort renders a raw won amount in compact form ("1.2 млн.").
func FormatWonShort(won int64) string {
	switch {
	case won > 1_000_000:
		return fmt.Sprintf("%.1f млн.", float64(won)/1_000_000)
	case won > 1_000:
		return fmt.Sprintf("%.1f тыс.", float64(won)/1_000)
	default:
		return fmt.Sprintf("%d", won)
	}
}

// FormatRangeText renders a stored "N" / "N-M" range for humans. Single
// bounds read as "от 0 до N" with the given unit suffix.
func FormatRangeText(low, high int64, dual bool, unit string) string {
	if dual {
		return fmt.Sprintf("%s - %s %s", FormatNumberSpaces(low), FormatNumberSpaces(high), unit)
	}
	return fmt.Sprintf("от 0 до %s %s", FormatNumberSpaces(low), unit)
}
