package query

import (
	"strings"
	"time"
)

// relativeExpr maps one relative time phrase to an absolute range anchored
// at now. The replacement string substitutes the phrase in the query text so
// the provider sees absolute dates instead of words like "recently".
type relativeExpr struct {
	phrase  string
	resolve func(now time.Time) (TimeRange, string)
}

const dateLayout = "2006-01-02"

// Expressions ordered longest-phrase-first so "지난주" never half-matches
// inside a longer phrase. Both Korean and English phrases resolve to the
// same anchored ranges.
var relativeExprs = []relativeExpr{
	{"지난 주", lastWeek}, {"지난주", lastWeek}, {"last week", lastWeek},
	{"이번 주", thisWeek}, {"이번주", thisWeek}, {"this week", thisWeek},
	{"지난 달", lastMonth}, {"지난달", lastMonth}, {"last month", lastMonth},
	{"이번 달", thisMonth}, {"이번달", thisMonth}, {"this month", thisMonth},
	{"어제", yesterday}, {"yesterday", yesterday},
	{"오늘", today}, {"today", today},
	{"작년", lastYear}, {"last year", lastYear},
	{"올해", thisYear}, {"this year", thisYear},
	{"최근", recent}, {"요즘", recent}, {"recently", recent}, {"lately", recent},
}

// resolveRelativeTime replaces the first recognized relative time phrase in
// text with its absolute equivalent. Returns the rewritten text and the
// resolved range, or (text, nil) when no phrase matches. Only the first
// matching phrase is resolved; one explicit range per query is enough for
// every provider in use.
func resolveRelativeTime(text string, now time.Time) (string, *TimeRange) {
	lower := strings.ToLower(text)
	for _, expr := range relativeExprs {
		// Byte offsets in lower match text: ASCII lowercasing preserves
		// length and Hangul is unaffected by ToLower.
		idx := strings.Index(lower, expr.phrase)
		if idx < 0 {
			continue
		}
		tr, replacement := expr.resolve(now)
		rewritten := text[:idx] + replacement + text[idx+len(expr.phrase):]
		rewritten = strings.Join(strings.Fields(rewritten), " ")
		return rewritten, &tr
	}
	return text, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func recent(now time.Time) (TimeRange, string) {
	start := midnight(now.AddDate(0, 0, -30))
	tr := TimeRange{Start: start, End: now}
	return tr, start.Format(dateLayout) + "~" + now.Format(dateLayout)
}

func yesterday(now time.Time) (TimeRange, string) {
	start := midnight(now.AddDate(0, 0, -1))
	tr := TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
	return tr, start.Format(dateLayout)
}

func today(now time.Time) (TimeRange, string) {
	start := midnight(now)
	tr := TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
	return tr, start.Format(dateLayout)
}

func thisWeek(now time.Time) (TimeRange, string) {
	start := midnight(now.AddDate(0, 0, -weekdayOffset(now)))
	tr := TimeRange{Start: start, End: now}
	return tr, start.Format(dateLayout) + "~" + now.Format(dateLayout)
}

func lastWeek(now time.Time) (TimeRange, string) {
	end := midnight(now.AddDate(0, 0, -weekdayOffset(now)))
	start := end.AddDate(0, 0, -7)
	tr := TimeRange{Start: start, End: end}
	return tr, start.Format(dateLayout) + "~" + end.AddDate(0, 0, -1).Format(dateLayout)
}

func thisMonth(now time.Time) (TimeRange, string) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	tr := TimeRange{Start: start, End: now}
	return tr, start.Format("2006-01")
}

func lastMonth(now time.Time) (TimeRange, string) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	tr := TimeRange{Start: start, End: start.AddDate(0, 1, 0)}
	return tr, start.Format("2006-01")
}

func thisYear(now time.Time) (TimeRange, string) {
	start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	tr := TimeRange{Start: start, End: now}
	return tr, start.Format("2006")
}

func lastYear(now time.Time) (TimeRange, string) {
	start := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, now.Location())
	tr := TimeRange{Start: start, End: start.AddDate(1, 0, 0)}
	return tr, start.Format("2006")
}

// weekdayOffset returns days since Monday.
func weekdayOffset(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}
