// Package normalize converts the loosely typed values found in business records
// into canonical numbers and dates, and formats them back for display.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultDecimals is the number of minor-unit digits used for currency display.
const DefaultDecimals = 3

var (
	nonNumeric = regexp.MustCompile(`[^0-9.\-]`)
)

// ParseAmount returns the numeric value of raw. JSON numbers keep their exact
// value, exponents included. Strings are stripped of every character outside
// [0-9.-] before parsing. Unparsable input yields 0.
func ParseAmount(raw any) float64 {
	var v float64
	switch x := raw.(type) {
	case nil:
		return 0
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case decimal.Decimal:
		v = x.InexactFloat64()
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return ParseAmount(string(x))
		}
		v = parsed
	case *string:
		if x == nil {
			return 0
		}
		return ParseAmount(*x)
	case string:
		cleaned := nonNumeric.ReplaceAllString(x, "")
		if cleaned == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatCurrency renders amount with exactly decimals fraction digits and comma
// grouping, independent of the process locale.
func FormatCurrency(amount float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	rounded := decimal.NewFromFloat(amount).Round(int32(decimals))
	if rounded.IsZero() {
		rounded = decimal.Zero
	}
	// Grouping is pinned to English so output does not follow the process locale.
	p := message.NewPrinter(language.English)
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), rounded.InexactFloat64())
}

// FormatQuantity prints a quantity without trailing fraction zeros.
func FormatQuantity(qty float64) string {
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return "0"
	}
	s := strconv.FormatFloat(qty, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// Epsilon returns the smallest magnitude that still shows up at the given
// display precision (0.0005 for three decimals).
func Epsilon(decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	return 0.5 * math.Pow10(-decimals)
}
