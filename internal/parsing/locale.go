// Package parsing holds the value cleanup shared by the invoice and detail readers: localized
// month names, Brazilian money notation, calendar dates and identifier normalization.
package parsing

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Locale carries the month names used to read and write textual dates.
// It is passed explicitly; nothing in this package depends on process locale settings.
type Locale struct {
	Name        string
	Months      [12]string // full names, lowercase
	ShortMonths [12]string // abbreviations used in month labels, lowercase
}

// PtBR is the Brazilian Portuguese locale printed on the vendor documents.
var PtBR = Locale{
	Name: "pt-BR",
	Months: [12]string{
		"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
	},
	ShortMonths: [12]string{
		"jan", "fev", "mar", "abr", "mai", "jun",
		"jul", "ago", "set", "out", "nov", "dez",
	},
}

// LookupMonth resolves a full or abbreviated month name. Case and accents are ignored,
// so "MARÇO", "Marco" and "mar" all resolve to March.
func (l Locale) LookupMonth(name string) (time.Month, bool) {
	key := Fold(name)
	if key == "" {
		return 0, false
	}
	for i := range l.Months {
		if key == Fold(l.Months[i]) || key == Fold(l.ShortMonths[i]) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// ShortMonth returns the abbreviation for m.
func (l Locale) ShortMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return l.ShortMonths[m-1]
}

// Fold lowercases s and strips combining marks, for accent-insensitive comparisons.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
