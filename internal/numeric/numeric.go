// Package numeric provides locale-aware numeric parsing and token cleaning
// for European-formatted invoice values.
package numeric

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numericTokenRe = regexp.MustCompile(`[-+]?\d*[.,]?\d+`)

// ParseDecimal converts a European-formatted number ("1.234,56", "52,66")
// to an exact decimal. Comma is the decimal separator; dots appearing
// together with a comma are thousands separators and are stripped. Returns
// ok=false for empty or non-numeric input.
func ParseDecimal(value string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "nan") {
		return decimal.Decimal{}, false
	}

	var standardized string
	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		// "1.234,56": dots are thousands separators, comma is decimal.
		parts := strings.SplitN(cleaned, ",", 2)
		standardized = strings.ReplaceAll(parts[0], ".", "") + "." + parts[1]
	case strings.Contains(cleaned, ","):
		// "126,911": comma is the decimal separator.
		standardized = strings.ReplaceAll(cleaned, ",", ".")
	default:
		standardized = cleaned
	}

	d, err := decimal.NewFromString(standardized)
	if err == nil {
		return d, true
	}

	// Surrounding text (currency symbols, labels): take the first numeric
	// token and retry.
	token := numericTokenRe.FindString(cleaned)
	if token == "" {
		return decimal.Decimal{}, false
	}
	d, err = decimal.NewFromString(strings.ReplaceAll(token, ",", "."))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseNullDecimal wraps ParseDecimal into a NullDecimal, with Valid=false
// on failure.
func ParseNullDecimal(value string) decimal.NullDecimal {
	d, ok := ParseDecimal(value)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// CleanString trims a cell value and discards empty or placeholder ("nan")
// content.
func CleanString(value string) string {
	cleaned := strings.TrimSpace(value)
	if strings.EqualFold(cleaned, "nan") {
		return ""
	}
	return cleaned
}

// Unit-of-measure vocabulary for the invoices this parser targets.
var standardUnits = []string{"MT", "KG", "PZ", "NR", "KM"}

// NormalizeUnit matches a raw unit cell against the fixed vocabulary. Cells
// spanning several lines are scanned line by line; when no standard unit is
// present the first clean line is returned, capped at 10 characters.
func NormalizeUnit(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		for _, unit := range standardUnits {
			if upper == unit {
				return unit
			}
		}
	}
	for _, line := range lines {
		cleaned := CleanString(line)
		if cleaned != "" {
			if len(cleaned) > 10 {
				return cleaned[:10]
			}
			return cleaned
		}
	}
	return ""
}

// ContainsUnitToken reports whether the cell mentions any standard unit,
// used by the flexible strategy to spot the unit column.
func ContainsUnitToken(cell string) bool {
	upper := strings.ToUpper(cell)
	for _, unit := range standardUnits {
		if strings.Contains(upper, unit) {
			return true
		}
	}
	return false
}
