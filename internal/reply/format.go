package reply

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Supported reply languages.
const (
	LangVietnamese = "vi"
	LangEnglish    = "en"
)

// FormatAmount renders an amount with the language's digit grouping,
// e.g. 50.000đ in Vietnamese and 50,000 in English.
func FormatAmount(d decimal.Decimal, lang string) string {
	group, point, suffix := ".", ",", "đ"
	if lang == LangEnglish {
		group, point, suffix = ",", ".", ""
	}

	intPart, frac, _ := strings.Cut(d.Abs().String(), ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(group)
		}
		b.WriteByte(intPart[i])
	}
	if frac != "" {
		b.WriteString(point)
		b.WriteString(frac)
	}
	b.WriteString(suffix)
	return b.String()
}

// DescribeDate names date relative to the message date: "hôm nay",
// "hôm qua", or "ngày 2/3".
func DescribeDate(date, messageDate time.Time, lang string) string {
	days := calendarDays(messageDate) - calendarDays(date)
	if lang == LangEnglish {
		switch days {
		case 0:
			return "today"
		case 1:
			return "yesterday"
		}
		if date.Year() != messageDate.Year() {
			return date.Format("on Jan 2, 2006")
		}
		return date.Format("on Jan 2")
	}

	switch days {
	case 0:
		return "hôm nay"
	case 1:
		return "hôm qua"
	case 2:
		return "hôm kia"
	}
	if date.Year() != messageDate.Year() {
		return fmt.Sprintf("ngày %d/%d/%d", date.Day(), int(date.Month()), date.Year())
	}
	return fmt.Sprintf("ngày %d/%d", date.Day(), int(date.Month()))
}

// calendarDays counts days since the epoch for the date's own calendar day,
// ignoring its clock time and zone offset.
func calendarDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
