package parsing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a value cannot be read as a monetary amount.
var ErrInvalidAmount = errors.New("unrecognized amount")

// MoneyPattern matches amounts written as 1.234,56 or 1234,56.
var MoneyPattern = regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})+,\d{2}|-?\d+,\d{2}`)

var exactMoney = regexp.MustCompile(`^(?:` + MoneyPattern.String() + `)$`)

// IsMoney reports whether s, after an optional "R$" prefix, is one complete comma-decimal
// amount and nothing else.
func IsMoney(s string) bool {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	return exactMoney.MatchString(cleaned)
}

// FindMoney returns the first amount in s.
func FindMoney(s string) (string, bool) {
	m := MoneyPattern.FindString(s)
	return m, m != ""
}

// ParseMoney converts Brazilian notation ("R$ 1.234,56") to a decimal. Values without a
// comma are read as plain dot-decimal numbers, which is how some detail exports write them.
func ParseMoney(s string) (decimal.Decimal, error) {
	const op = "ParseMoney"

	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%s: empty value: %w", op, ErrInvalidAmount)
	}

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidAmount)
	}
	return d, nil
}

// FormatMoney renders d in the vendor notation with two decimals, e.g. "1.234,56".
func FormatMoney(d decimal.Decimal) string {
	fixed := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(intPart[i : i+3])
	}

	return sign + b.String() + "," + frac
}
