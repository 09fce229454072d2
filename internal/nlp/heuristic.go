package nlp

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dottedDatePattern = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})(?:\.(\d{4}))?\b`)
)

// HeuristicExtractor finds explicit dates in the text: ISO form, day.month
// with an optional year, and the words "today"/"tomorrow". A date that
// already passed is rolled forward a year, so "24.12" in January still means
// the next Christmas Eve.
type HeuristicExtractor struct {
	now func() time.Time
}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{now: time.Now}
}

func (e *HeuristicExtractor) ExtractFutureDate(ctx context.Context, text string) (time.Time, bool) {
	today := dateOnly(e.now())
	lower := strings.ToLower(text)

	if strings.Contains(lower, "tomorrow") {
		return today.AddDate(0, 0, 1), true
	}
	if strings.Contains(lower, "today") {
		return today, true
	}

	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if date, ok := buildDate(year, month, day); ok {
			return rollForward(date, today), true
		}
	}

	if m := dottedDatePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if date, ok := buildDate(year, month, day); ok {
			return rollForward(date, today), true
		}
	}

	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject those.
	if date.Day() != day || date.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return date, true
}

// rollForward moves a past date into the year after today.
func rollForward(date, today time.Time) time.Time {
	if !date.Before(today) {
		return date
	}
	return time.Date(today.Year()+1, date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}
