// Package calendar parses the calendar dates printed by the portal. Month
// names depend on a Locale that is always passed explicitly.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Locale struct {
	Tag      language.Tag
	Months   [12]string
	Location *time.Location
}

var French = Locale{
	Tag: language.French,
	Months: [12]string{
		"janvier", "février", "mars", "avril", "mai", "juin",
		"juillet", "août", "septembre", "octobre", "novembre", "décembre",
	},
	Location: mustLoad("Europe/Paris"),
}

var English = Locale{
	Tag: language.English,
	Months: [12]string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	},
	Location: time.UTC,
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fold lowercases and strips diacritics so "Février", "fevrier" and "FÉVRIER"
// compare equal.
func (l Locale) fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Lower(l.Tag).String(strings.TrimSpace(stripped))
}

// Month resolves a month name or an abbreviation of at least 3 letters
// ("janv.", "déc"). Ambiguous abbreviations are rejected.
func (l Locale) Month(name string) (time.Month, error) {
	folded := strings.TrimSuffix(l.fold(name), ".")
	if folded == "" {
		return 0, fmt.Errorf("empty month name")
	}

	var found time.Month
	for i, month := range l.Months {
		candidate := l.fold(month)
		if candidate == folded {
			return time.January + time.Month(i), nil
		}
		if len(folded) >= 3 && strings.HasPrefix(candidate, folded) {
			if found != 0 {
				return 0, fmt.Errorf("ambiguous month abbreviation %q", name)
			}
			found = time.January + time.Month(i)
		}
	}
	if found == 0 {
		return 0, fmt.Errorf("unknown month %q", name)
	}
	return found, nil
}

// ParseDayMonthYear parses a DD/MM/YYYY date at midnight in the locale's location.
func ParseDayMonthYear(l Locale, text string) (time.Time, error) {
	date, err := time.ParseInLocation("02/01/2006", strings.TrimSpace(text), l.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	return date, nil
}

var ordinalDayRegex = regexp.MustCompile(`^(\d{1,2})(?:er|re|eme|e|st|nd|rd|th)?$`)

// ParseOrdinal parses "<day>[ordinal suffix] <month name> <year>", ex. "1er janvier 2023"
// with French or "3rd January 2023" with English.
func ParseOrdinal(l Locale, text string) (time.Time, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("parse date %q: expected day, month and year", text)
	}

	dayMatch := ordinalDayRegex.FindStringSubmatch(l.fold(fields[0]))
	if dayMatch == nil {
		return time.Time{}, fmt.Errorf("parse date %q: invalid day %q", text, fields[0])
	}
	day, err := strconv.Atoi(dayMatch[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}

	month, err := l.Month(fields[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}

	year, err := strconv.Atoi(fields[2])
	if err != nil || len(fields[2]) != 4 {
		return time.Time{}, fmt.Errorf("parse date %q: invalid year %q", text, fields[2])
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, l.Location)
	if date.Day() != day || date.Month() != month {
		return time.Time{}, fmt.Errorf("parse date %q: day out of range", text)
	}
	return date, nil
}
