package analysis

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// numericRegex validates a number after an optional comma-to-dot swap.
// Matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

// MinPhoneDigits is the number of digits a value needs to count as a phone
// number.
const MinPhoneDigits = 8

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for 2-digit year handling. Day-first
// layouts come before month-first ones since the files are French exports.
var (
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "1/2/06", "01/02/06", "1-2-06", "1.2.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// typePredicates is evaluated in declaration order; earlier entries win
// ties. Text is not listed because every value matches it.
var typePredicates = []struct {
	typ   ColumnType
	match func(string) bool
}{
	{TypeNumber, IsNumber},
	{TypeEmail, IsEmail},
	{TypePhone, IsPhone},
	{TypeDate, IsDate},
}

// InferColumnType classifies a column from its values using
// DefaultThresholds().MinTypeConfidence.
func InferColumnType(values []string) ColumnTypeInfo {
	return inferColumnType(values, DefaultThresholds().MinTypeConfidence)
}

// inferColumnType scores every predicate against the non-empty values. The
// best scoring typed predicate wins when it reaches minConfidence, otherwise
// the column is text.
func inferColumnType(values []string, minConfidence float64) ColumnTypeInfo {
	var nonEmpty []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return ColumnTypeInfo{Type: TypeEmpty, Confidence: 1}
	}

	best := ColumnTypeInfo{Type: TypeText, Confidence: 0}
	for _, p := range typePredicates {
		matches := 0
		for _, v := range nonEmpty {
			if p.match(v) {
				matches++
			}
		}
		score := float64(matches) / float64(len(nonEmpty))
		if score > best.Confidence {
			best = ColumnTypeInfo{Type: p.typ, Confidence: score}
		}
	}

	if best.Confidence == 0 || best.Confidence < minConfidence {
		return ColumnTypeInfo{Type: TypeText, Confidence: 1}
	}
	return best
}

// MatchesType reports whether a single non-empty value satisfies the
// formatting rule of t. Text and empty columns accept anything.
func MatchesType(t ColumnType, value string) bool {
	value = strings.TrimSpace(value)
	switch t {
	case TypeNumber:
		return IsNumber(value)
	case TypeEmail:
		return IsEmail(value)
	case TypePhone:
		return IsPhone(value)
	case TypeDate:
		return IsDate(value)
	default:
		return true
	}
}

// IsNumber reports whether s is a numeric literal. A single comma is
// accepted as the decimal separator when no dot is present.
func IsNumber(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return numericRegex.MatchString(s)
}

// IsEmail reports whether s has the local@domain.tld shape.
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	return strings.Count(s, "@") == 1 && emailRegex.MatchString(s)
}

// IsPhone reports whether s is made of digits, spaces, hyphens and
// parentheses with an optional leading plus and at least MinPhoneDigits
// digits. ISO dates such as 2024-01-15 are not phones.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneRegex.MatchString(s) || IsDate(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= MinPhoneDigits
}

// IsDate reports whether s parses under one of the known date layouts.
func IsDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses s under the known layouts. 2-digit years are resolved
// with TwoDigitYearPivot.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// time.Parse maps 69-99 to 19xx and 00-68 to 20xx.
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}
