package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount accepts plain decimals and the formatted strings upstream
// systems sometimes send:
//   - "1234.56"
//   - "R$ 1.234,56"
//   - "BRL -20,00"
//   - "1,234.56"
//
// Plain numbers, including a sign or an exponent ("1.5e2"), are parsed as
// is. Otherwise, when both separators appear the last one is the decimal
// point, and a lone comma is a decimal comma.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if val, err := decimal.NewFromString(s); err == nil {
		return val, nil
	}
	for _, prefix := range []string{"R$", "BRL", "brl"} {
		s = strings.TrimSpace(strings.ReplaceAll(s, prefix, ""))
	}
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "+"))
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	decimalSep := '.'
	if lastComma > lastDot {
		decimalSep = ','
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	seenSep := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == decimalSep:
			if seenSep {
				// "1.234.567" style grouping with no decimals
				continue
			}
			seenSep = true
			b.WriteRune('.')
		case r == '.' || r == ',' || r == ' ':
			// grouping
		default:
			return decimal.Zero, ErrInvalidAmount
		}
	}
	clean := b.String()
	if clean == "" || clean == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, string(decimalSep)) > 1 {
		clean = strings.ReplaceAll(clean, ".", "")
	}
	if neg {
		clean = "-" + clean
	}

	val, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, err
	}
	return val, nil
}
