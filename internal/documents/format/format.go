// Package format renders amounts, scores and dates as display strings for
// placeholder values and document tables.
package format

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/printdesk/printdesk/internal/model"
)

// DateLayout is the dd/mm/yyyy display layout
const DateLayout = "02/01/2006"

// Formatter formats values for one locale
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
	// Symbol prefixes currency amounts
	Symbol string
}

// New creates a formatter for tag
func New(tag language.Tag) *Formatter {
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag),
		Symbol:  "R$",
	}
}

// Default formats for Brazilian Portuguese
func Default() *Formatter {
	return New(language.BrazilianPortuguese)
}

// Tag returns the formatter's locale
func (f *Formatter) Tag() language.Tag {
	return f.tag
}

// Currency formats v as "R$ 1.200,00"
func (f *Formatter) Currency(v float64) string {
	s := f.Symbol + " " + f.Decimal(math.Abs(v), 2)
	if v < 0 && math.Round(v*100) != 0 {
		return "-" + s
	}
	return s
}

// Amount formats a as currency; invalid amounts render as ""
func (f *Formatter) Amount(a model.Amount) string {
	if !a.Valid {
		return ""
	}
	return f.Currency(a.Value)
}

// Decimal formats v with places fractional digits and locale grouping
func (f *Formatter) Decimal(v float64, places int) string {
	switch places {
	case 0:
		return f.printer.Sprintf("%.0f", v)
	case 1:
		return f.printer.Sprintf("%.1f", v)
	case 2:
		return f.printer.Sprintf("%.2f", v)
	default:
		return f.printer.Sprintf("%.3f", v)
	}
}

// Score formats a grade with one decimal, or "-" when absent
func (f *Formatter) Score(a model.Amount) string {
	if !a.Valid {
		return "-"
	}
	return f.Decimal(a.Value, 1)
}

// Percent formats part/total as a whole percentage; "-" when total is zero
func (f *Formatter) Percent(part, total int) string {
	if total <= 0 {
		return "-"
	}
	return f.Decimal(float64(part)*100/float64(total), 0) + "%"
}

// Integer formats n with locale grouping
func (f *Formatter) Integer(n int) string {
	return f.printer.Sprintf("%d", n)
}

// ParseDate reads the date part of an ISO date or datetime. The calendar
// date is taken as written, without time zone conversion.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Date formats an ISO date or datetime as dd/mm/yyyy. Input that is not
// ISO is returned unchanged.
func (f *Formatter) Date(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return t.Format(DateLayout)
}

// DateOf formats t as dd/mm/yyyy
func (f *Formatter) DateOf(t time.Time) string {
	return t.Format(DateLayout)
}
