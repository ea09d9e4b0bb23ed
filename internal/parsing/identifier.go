package parsing

import (
	"regexp"
	"strings"
)

// NormalizeInvoiceNumber produces the join key for invoice numbers: surrounding
// whitespace and leading zeros are removed. Applying it twice gives the same result.
func NormalizeInvoiceNumber(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "0")
}

// IdentifierProbes are tried in order to isolate an account identifier from a noisy line.
var IdentifierProbes = []*regexp.Regexp{
	regexp.MustCompile(`[0-9]+-[0-9]+`),
	regexp.MustCompile(`[0-9]{10}`),
	regexp.MustCompile(`[0-9]{8}`),
	regexp.MustCompile(`[0-9]{7}`),
}

// ProbeIdentifier returns the first match of the first probe that matches s.
func ProbeIdentifier(s string) (string, bool) {
	for _, re := range IdentifierProbes {
		if m := re.FindString(s); m != "" {
			return m, true
		}
	}
	return "", false
}
