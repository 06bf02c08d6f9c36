package dashboard

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	displayDateLayout = "02/01/2006"
	isoDateLayout     = "2006-01-02"
)

// FormatAmount renders d as Brazilian currency digits, e.g. 1.234.567,89.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	p := message.NewPrinter(language.BrazilianPortuguese)
	return p.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatDate renders d as DD/MM/YYYY; the zero date renders empty.
func FormatDate(d civil.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.In(time.UTC).Format(displayDateLayout)
}

// ParseDate accepts DD/MM/YYYY, the display format, or YYYY-MM-DD.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{displayDateLayout, isoDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q, expected DD/MM/YYYY", s)
}

// ParseDateRange parses both ends of a window and checks their order.
func ParseDateRange(start, end string) (domain.DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("start_date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("end_date: %w", err)
	}
	if e.Before(s) {
		return domain.DateRange{}, fmt.Errorf("end_date %s is before start_date %s", FormatDate(e), FormatDate(s))
	}
	return domain.DateRange{Start: s, End: e}, nil
}
