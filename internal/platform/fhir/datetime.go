package fhir

import "time"

const dateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// FormatDateTime renders a FHIR dateTime in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate renders a FHIR date (no time part).
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDateTime accepts the dateTime shapes produced by common FHIR servers.
// Partial dates (year or year-month) are not accepted.
func ParseDateTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateTimeEnd parses an inclusive upper bound. A bare date covers its
// whole day, so it resolves to the last instant of that day.
func ParseDateTimeEnd(s string) (time.Time, bool) {
	t, ok := ParseDateTime(s)
	if ok && len(s) == len(dateLayout) {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, ok
}
