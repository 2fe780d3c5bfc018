package extraction

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ParseISODate accepts ISO-8601 dates with an optional time and UTC offset:
//
//	2024-05-01, 20240501, 2024-W18, 2024-W18-3, 2024W183
//	followed by any single separator character and
//	HH, HH:MM, HHMM, HH:MM:SS, HHMMSS with an optional .fff or ,fff fraction
//	and an optional Z, ±HH, ±HHMM or ±HH:MM[:SS] offset.
//
// Calendar validity is checked, so 2024-02-30 or week 53 of a 52-week year fail.
func ParseISODate(value string) (time.Time, error) {
	dateLength := isoDateLength(value)
	if len(value) < dateLength {
		return time.Time{}, fmt.Errorf("%q is not an ISO8601 date", value)
	}

	date, err := parseISODatePart(value[:dateLength])
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an ISO8601 date: %w", value, err)
	}
	if len(value) == dateLength {
		return date, nil
	}

	_, separatorSize := utf8.DecodeRuneInString(value[dateLength:])
	timePart := value[dateLength+separatorSize:]
	if timePart == "" {
		return time.Time{}, fmt.Errorf("%q is not an ISO8601 date: missing time after separator", value)
	}

	hour, minute, second, nanos, location, err := parseISOTime(timePart)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an ISO8601 date: %w", value, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, second, nanos, location), nil
}

// isoDateLength returns how many leading bytes belong to the date component
func isoDateLength(value string) int {
	if len(value) > 4 && value[4] == '-' {
		if len(value) > 5 && value[5] == 'W' {
			if len(value) > 8 && value[8] == '-' {
				return 10 // 2024-W18-3
			}
			return 8 // 2024-W18
		}
		return 10 // 2024-05-01
	}
	if len(value) > 4 && value[4] == 'W' {
		if len(value) > 7 && isDigit(value[7]) {
			return 8 // 2024W183
		}
		return 7 // 2024W18
	}
	return 8 // 20240501
}

func parseISODatePart(value string) (time.Time, error) {
	if strings.ContainsRune(value, 'W') {
		return parseISOWeekDate(value)
	}

	var yearText, monthText, dayText string
	switch {
	case len(value) == 10 && value[4] == '-' && value[7] == '-':
		yearText, monthText, dayText = value[0:4], value[5:7], value[8:10]
	case len(value) == 8:
		yearText, monthText, dayText = value[0:4], value[4:6], value[6:8]
	default:
		return time.Time{}, fmt.Errorf("malformed date %q", value)
	}

	year, okYear := parseDigits(yearText)
	month, okMonth := parseDigits(monthText)
	day, okDay := parseDigits(dayText)
	if !okYear || !okMonth || !okDay || year < 1 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("malformed date %q", value)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, fmt.Errorf("day %d is out of range for %04d-%02d", day, year, month)
	}
	return date, nil
}

func parseISOWeekDate(value string) (time.Time, error) {
	compact := strings.ReplaceAll(value, "-", "")
	if len(compact) != 7 && len(compact) != 8 || compact[4] != 'W' {
		return time.Time{}, fmt.Errorf("malformed week date %q", value)
	}

	year, okYear := parseDigits(compact[0:4])
	week, okWeek := parseDigits(compact[5:7])
	weekday := 1
	okDay := true
	if len(compact) == 8 {
		weekday, okDay = parseDigits(compact[7:8])
	}
	if !okYear || !okWeek || !okDay || year < 1 || week < 1 || week > 53 || weekday < 1 || weekday > 7 {
		return time.Time{}, fmt.Errorf("malformed week date %q", value)
	}

	// week 1 is the week containing January 4th, weeks start on Monday
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(jan4.Weekday()) + 6) % 7
	date := jan4.AddDate(0, 0, -sinceMonday+(week-1)*7+weekday-1)
	if isoYear, isoWeek := date.ISOWeek(); isoYear != year || isoWeek != week {
		return time.Time{}, fmt.Errorf("week %d is out of range for %04d", week, year)
	}
	return date, nil
}

func parseISOTime(value string) (hour, minute, second, nanos int, location *time.Location, err error) {
	location = time.UTC
	clock := value
	if i := strings.IndexAny(value, "Z+-"); i >= 0 {
		clock = value[:i]
		location, err = parseISOOffset(value[i:])
		if err != nil {
			return 0, 0, 0, 0, nil, err
		}
	}

	hour, minute, second, nanos, err = parseClock(clock)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	return hour, minute, second, nanos, location, nil
}

func parseISOOffset(value string) (*time.Location, error) {
	if value == "Z" {
		return time.UTC, nil
	}
	sign := 1
	if value[0] == '-' {
		sign = -1
	} else if value[0] != '+' {
		return nil, fmt.Errorf("malformed offset %q", value)
	}

	hours, minutes, seconds, _, err := parseClock(value[1:])
	if err != nil {
		return nil, fmt.Errorf("malformed offset %q: %w", value, err)
	}
	return time.FixedZone("", sign*(hours*3600+minutes*60+seconds)), nil
}

// parseClock reads HH, HH:MM, HH:MM:SS or their compact forms, with an optional
// fraction after the seconds
func parseClock(value string) (hour, minute, second, nanos int, err error) {
	if i := strings.IndexAny(value, ".,"); i >= 0 {
		fraction := value[i+1:]
		digits, ok := parseDigits(fraction)
		if !ok || len(fraction) > 9 {
			return 0, 0, 0, 0, fmt.Errorf("malformed fraction in %q", value)
		}
		nanos = digits
		for n := len(fraction); n < 9; n++ {
			nanos *= 10
		}
		value = value[:i]
		if len(strings.ReplaceAll(value, ":", "")) != 6 {
			return 0, 0, 0, 0, fmt.Errorf("fraction without seconds in %q", value)
		}
	}

	var fields []string
	if strings.Contains(value, ":") {
		fields = strings.Split(value, ":")
	} else {
		for i := 0; i < len(value); i += 2 {
			fields = append(fields, value[i:min(i+2, len(value))])
		}
	}
	if len(fields) == 0 || len(fields) > 3 {
		return 0, 0, 0, 0, fmt.Errorf("malformed time %q", value)
	}

	parts := [3]int{}
	for i, field := range fields {
		n, ok := parseDigits(field)
		if !ok || len(field) != 2 {
			return 0, 0, 0, 0, fmt.Errorf("malformed time %q", value)
		}
		parts[i] = n
	}
	hour, minute, second = parts[0], parts[1], parts[2]
	if hour > 23 || minute > 59 || second > 59 {
		return 0, 0, 0, 0, fmt.Errorf("time %q is out of range", value)
	}
	return hour, minute, second, nanos, nil
}

func parseDigits(value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(value); i++ {
		if !isDigit(value[i]) {
			return 0, false
		}
		n = n*10 + int(value[i]-'0')
	}
	return n, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
