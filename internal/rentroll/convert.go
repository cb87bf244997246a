package rentroll

// convert.go provides cell-level conversions for user-authored spreadsheet
// data:
//   - Currency symbols and thousands separators in rent amounts
//   - Multiple date formats (US, EU, ISO) plus Excel date serials
//   - Excel formula prefixes (="value") and stray quotes
//
// Parsers return (zero value, false) for empty or unparseable input; deciding
// whether that is an error belongs to the validator.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// emailRegex accepts a basic local@domain.tld shape. Deliverability checks
// are not this pipeline's job.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// numericRegex validates a numeric string after currency cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Date layouts tried in order. Four-digit years first, they are unambiguous.
var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
	"Jan 2, 2006", "2 Jan 2006",
	"1/2/06", "01/02/06",
}

// excelEpoch is the zero date of Excel's 1900 date system. Day 1 is
// 1900-01-01; the epoch sits at 1899-12-30 to absorb Excel's historical
// treatment of 1900 as a leap year.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial bounds serial interpretation to dates before year 2174.
// Larger integers in a date cell are almost certainly not dates.
const maxExcelSerial = 100000

// CleanCell removes common spreadsheet export artifacts from a cell value:
// surrounding whitespace, Excel formula prefix (="..."), and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// ValidEmail reports whether s matches a basic address pattern.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ParseMoney parses a currency cell into a decimal dollar amount.
// Handles currency symbols, thousands separators, and the accounting
// convention of parentheses for negative values.
func ParseMoney(s string) (decimal.Decimal, bool) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate parses a date cell. A bare integer within Excel's plausible
// serial range is treated as a 1900-system date serial; anything else goes
// through the layout list. Returns midnight UTC of the calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(serial)
		if n >= 1 && n <= maxExcelSerial {
			return excelEpoch.AddDate(0, 0, n), true
		}
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// FirstOfNextMonth returns midnight UTC on the first day of the calendar
// month after now. Used as the due-date default when the source row carries
// no parseable date.
func FirstOfNextMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
