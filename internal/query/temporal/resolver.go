// Package temporal resolves free-text date expressions into concrete
// timestamp ranges or coarse month filters. Resolution is an ordered
// strategy chain: absolute dates, named months, relative timeframes,
// named periods, contextual ranges, then an LLM fallback. The first
// strategy that matches wins; there is no backtracking across strategies.
package temporal

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DateRange is an inclusive UTC timestamp range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CoarseFilter constrains by calendar month, optionally pinned to a year.
// Year 0 means "any year".
type CoarseFilter struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year,omitempty"`
}

// Constraint is the resolver output. Range is always set when a temporal
// expression was found; Coarse is additionally set for month-only queries
// so the retrieval filter can pin the calendar month across the widened
// multi-year range.
type Constraint struct {
	Range  *DateRange    `json:"range,omitempty"`
	Coarse *CoarseFilter `json:"coarse,omitempty"`
}

// DateExtractor is the language-understanding fallback for expressions the
// rule chain cannot parse. It may be slow and may fail; a failure means
// "no information" and must not abort resolution.
type DateExtractor interface {
	ExtractDateRange(ctx context.Context, query string, ref time.Time) (*DateRange, error)
}

// DefaultLookbackYears is how many years before the reference year a
// month-only query is widened across when no year is given.
const DefaultLookbackYears = 5

// Resolver resolves temporal expressions against an explicit reference
// date. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	fallback      DateExtractor
	lookbackYears int
	logger        *zap.Logger
}

// NewResolver creates a resolver. fallback may be nil to disable the LLM
// strategy. lookbackYears <= 0 selects DefaultLookbackYears.
func NewResolver(fallback DateExtractor, lookbackYears int, logger *zap.Logger) *Resolver {
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}
	return &Resolver{fallback: fallback, lookbackYears: lookbackYears, logger: logger}
}

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// monthNames holds the month name keys longest-first so "september" is
// tried before "sep" in alternations.
var monthNames = func() []string {
	names := make([]string, 0, len(monthNumbers))
	for name := range monthNumbers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

var (
	isoDateRe     = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	slashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	textualDateRe = regexp.MustCompile(`\b(` + strings.Join(monthNames, "|") + `)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s*(20\d{2})?\b`)
	yearRe        = regexp.MustCompile(`\b(20\d{2})\b`)
	lastNDaysRe   = regexp.MustCompile(`(?:last|past)\s+(\d+)\s+days?`)
	quarterRe     = regexp.MustCompile(`\bq([1-4])\s*(20\d{2})?\b`)
	betweenRe     = regexp.MustCompile(`between\s+(.+?)\s+and\s+([^,.!?]+)`)
)

// Resolve runs the strategy chain against the query. It never fails:
// absence of a temporal expression yields nil.
func (r *Resolver) Resolve(ctx context.Context, query string, ref time.Time) *Constraint {
	q := strings.ToLower(query)
	ref = ref.UTC()

	strategies := []func(string, time.Time) *Constraint{
		r.tryISODate,
		r.trySlashDate,
		r.tryTextualDate,
		r.tryMonthOnly,
		r.tryRelativeTimeframe,
		r.tryNamedPeriod,
		r.tryContextualRange,
	}
	for _, try := range strategies {
		if c := try(q, ref); c != nil {
			return c
		}
	}

	return r.tryLLMExtraction(ctx, query, ref)
}

// tryISODate matches YYYY-MM-DD.
func (r *Resolver) tryISODate(q string, _ time.Time) *Constraint {
	m := isoDateRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return singleDay(year, time.Month(month), day)
}

// trySlashDate matches M/D/Y with 2-digit years assumed to be 2000s.
func (r *Resolver) trySlashDate(q string, _ time.Time) *Constraint {
	m := slashDateRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	return singleDay(year, time.Month(month), day)
}

// tryTextualDate matches "Month D[, Year]". With no year, the reference
// year is assumed, rolled back one year when the named month is later in
// the calendar than the reference month.
func (r *Resolver) tryTextualDate(q string, ref time.Time) *Constraint {
	m := textualDateRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	month := monthNumbers[m[1]]
	day, _ := strconv.Atoi(m[2])

	year := ref.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	} else if month > ref.Month() {
		year--
	}
	return singleDay(year, month, day)
}

// tryMonthOnly matches a bare month name, with an optional 4-digit year
// anywhere nearby. Without a year the range is widened across the
// reference year and lookbackYears prior years, and a coarse month filter
// is attached so retrieval can still pin the calendar month.
func (r *Resolver) tryMonthOnly(q string, ref time.Time) *Constraint {
	for _, name := range monthNames {
		re := regexp.MustCompile(`\b` + name + `\b`)
		if !re.MatchString(q) {
			continue
		}
		month := monthNumbers[name]

		if ym := yearRe.FindStringSubmatch(q); ym != nil {
			year, _ := strconv.Atoi(ym[1])
			start, end := monthRange(year, month)
			return &Constraint{
				Range:  &DateRange{Start: start, End: end},
				Coarse: &CoarseFilter{Month: month, Year: year},
			}
		}

		start := time.Date(ref.Year()-r.lookbackYears, month, 1, 0, 0, 0, 0, time.UTC)
		_, end := monthRange(ref.Year(), month)
		return &Constraint{
			Range:  &DateRange{Start: start, End: end},
			Coarse: &CoarseFilter{Month: month},
		}
	}
	return nil
}

// tryRelativeTimeframe matches today, yesterday, this/last week, month,
// year, and "last N days". Weeks start on Monday. Open-ended "this ..."
// and "today" ranges end at the reference instant.
func (r *Resolver) tryRelativeTimeframe(q string, ref time.Time) *Constraint {
	switch {
	case strings.Contains(q, "today"):
		return rangeConstraint(startOfDay(ref), ref)

	case strings.Contains(q, "yesterday"):
		y := ref.AddDate(0, 0, -1)
		return singleDay(y.Year(), y.Month(), y.Day())

	case strings.Contains(q, "last week"):
		start := startOfDay(ref.AddDate(0, 0, -(daysSinceMonday(ref) + 7)))
		return rangeConstraint(start, endOfDay(start.AddDate(0, 0, 6)))

	case strings.Contains(q, "this week"):
		return rangeConstraint(startOfDay(ref.AddDate(0, 0, -daysSinceMonday(ref))), ref)

	case strings.Contains(q, "last month"):
		firstThisMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		lastInstant := firstThisMonth.Add(-time.Microsecond)
		start := time.Date(lastInstant.Year(), lastInstant.Month(), 1, 0, 0, 0, 0, time.UTC)
		return rangeConstraint(start, lastInstant)

	case strings.Contains(q, "this month"):
		return rangeConstraint(time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC), ref)

	case strings.Contains(q, "last year"):
		year := ref.Year() - 1
		return rangeConstraint(
			time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year, time.December, 31, 23, 59, 59, microsecondCeil, time.UTC),
		)

	case strings.Contains(q, "this year"):
		return rangeConstraint(time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), ref)
	}

	if m := lastNDaysRe.FindStringSubmatch(q); m != nil {
		days, _ := strconv.Atoi(m[1])
		return rangeConstraint(startOfDay(ref.AddDate(0, 0, -days)), ref)
	}
	return nil
}

// tryNamedPeriod matches calendar quarters and the built-in holiday table,
// with optional "week before" / "week after" / "week" modifiers.
func (r *Resolver) tryNamedPeriod(q string, ref time.Time) *Constraint {
	if m := quarterRe.FindStringSubmatch(q); m != nil {
		quarter, _ := strconv.Atoi(m[1])
		year := ref.Year()
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
		startMonth := time.Month((quarter-1)*3 + 1)
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, startMonth+3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Microsecond)
		if startMonth == time.October {
			end = time.Date(year, time.December, 31, 23, 59, 59, microsecondCeil, time.UTC)
		}
		return rangeConstraint(start, end)
	}

	for _, h := range holidays {
		if !strings.Contains(q, h.name) {
			continue
		}
		year := ref.Year()
		if ym := yearRe.FindStringSubmatch(q); ym != nil {
			year, _ = strconv.Atoi(ym[1])
		}
		day := h.date(year)

		switch {
		case strings.Contains(q, "week before"):
			return dayBoundedRange(day.AddDate(0, 0, -7), day.AddDate(0, 0, -1))
		case strings.Contains(q, "week after"), strings.Contains(q, "week following"):
			return dayBoundedRange(day.AddDate(0, 0, 1), day.AddDate(0, 0, 7))
		case strings.Contains(q, "week"), strings.Contains(q, "weekend"):
			start := day.AddDate(0, 0, -daysSinceMonday(day))
			return dayBoundedRange(start, start.AddDate(0, 0, 6))
		default:
			return singleDay(day.Year(), day.Month(), day.Day())
		}
	}
	return nil
}

// tryContextualRange matches "since <date>" and "between <A> and <B>"
// with a lenient date parser on each end.
func (r *Resolver) tryContextualRange(q string, ref time.Time) *Constraint {
	if idx := strings.Index(q, "since"); idx >= 0 {
		clause := strings.TrimSpace(q[idx+len("since"):])
		if start, ok := parseLenient(clause, ref); ok {
			return rangeConstraint(startOfDay(start), ref)
		}
		r.log().Debug("unparseable since clause", zap.String("clause", clause))
	}

	if m := betweenRe.FindStringSubmatch(q); m != nil {
		start, okA := parseLenient(strings.TrimSpace(m[1]), ref)
		end, okB := parseLenient(strings.TrimSpace(m[2]), ref)
		if okA && okB {
			return dayBoundedRange(start, end)
		}
		r.log().Debug("unparseable between clause",
			zap.String("start", m[1]), zap.String("end", m[2]))
	}
	return nil
}

// tryLLMExtraction is the terminal fallback. Failures degrade to nil.
func (r *Resolver) tryLLMExtraction(ctx context.Context, query string, ref time.Time) *Constraint {
	if r.fallback == nil {
		return nil
	}
	dr, err := r.fallback.ExtractDateRange(ctx, query, ref)
	if err != nil {
		r.log().Warn("llm date extraction failed", zap.Error(err))
		return nil
	}
	if dr == nil {
		return nil
	}
	return dayBoundedRange(dr.Start, dr.End)
}

func (r *Resolver) log() *zap.Logger {
	if r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}

// lenientLayouts are tried in order against since/between clauses,
// progressively truncated from the right so trailing words do not break
// parsing.
var lenientLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"January 2006",
	"January 2",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan 2006",
	"Jan 2",
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"January",
	"Jan",
	"2006",
}

// parseLenient parses a free-form date clause. Year-less forms assume the
// reference year.
func parseLenient(clause string, ref time.Time) (time.Time, bool) {
	clause = strings.Trim(clause, " .,;!?")
	words := strings.Fields(clause)
	if len(words) == 0 {
		return time.Time{}, false
	}
	if len(words) > 4 {
		words = words[:4]
	}
	for end := len(words); end >= 1; end-- {
		fragment := strings.Join(words[:end], " ")
		fragment = strings.TrimRight(fragment, ".,;!?")
		fragment = stripOrdinals(titleCaseMonths(fragment))
		for _, layout := range lenientLayouts {
			t, err := time.ParseInLocation(layout, fragment, time.UTC)
			if err != nil {
				continue
			}
			if t.Year() == 0 {
				t = time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

var ordinalRe = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

func stripOrdinals(s string) string {
	return ordinalRe.ReplaceAllString(s, "$1")
}

// titleCaseMonths capitalizes month-name words so time.Parse layout
// tokens recognize them; resolver input is lowercased before this point.
func titleCaseMonths(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if _, ok := monthNumbers[strings.ToLower(w)]; ok {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// microsecondCeil is the nanosecond component of 23:59:59.999999.
const microsecondCeil = int(999999 * time.Microsecond)

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, microsecondCeil, time.UTC)
}

// daysSinceMonday returns the day offset into a Monday-start week.
func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func singleDay(year int, month time.Month, day int) *Constraint {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return rangeConstraint(d, endOfDay(d))
}

// DayBounded widens a pair of instants to full-day UTC bounds: the
// start of start's day through the last microsecond of end's day.
func DayBounded(start, end time.Time) DateRange {
	return DateRange{Start: startOfDay(start), End: endOfDay(end)}
}

func dayBoundedRange(start, end time.Time) *Constraint {
	dr := DayBounded(start, end)
	return &Constraint{Range: &dr}
}

func rangeConstraint(start, end time.Time) *Constraint {
	return &Constraint{Range: &DateRange{Start: start, End: end}}
}

// monthRange returns the first and last instants of a calendar month.
func monthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Microsecond)
	return start, end
}

func (dr *DateRange) String() string {
	if dr == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%s, %s]", dr.Start.Format(time.RFC3339), dr.End.Format(time.RFC3339))
}
