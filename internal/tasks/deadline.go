package tasks

import (
	"strings"
	"time"
)

const (
	DeadlineLayout     = "2006-01-02 15:04"
	DeadlineDateLayout = "2006-01-02"
)

// ParseDeadline parses "YYYY-MM-DD HH:MM" or "YYYY-MM-DD" in loc.
// A bare date means 23:59 on that day.
func ParseDeadline(text string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(text)
	if strings.Contains(s, " ") {
		t, err := time.ParseInLocation(DeadlineLayout, s, loc)
		if err != nil {
			return time.Time{}, invalidDeadline(text)
		}
		return t, nil
	}

	d, err := time.ParseInLocation(DeadlineDateLayout, s, loc)
	if err != nil {
		return time.Time{}, invalidDeadline(text)
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 23, 59, 0, 0, loc), nil
}

// FormatDeadline renders t in loc using DeadlineLayout.
func FormatDeadline(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DeadlineLayout)
}

func invalidDeadline(text string) error {
	return &ValidationError{
		Field:  "deadline",
		Value:  text,
		Reason: "expected YYYY-MM-DD [HH:MM]",
	}
}
