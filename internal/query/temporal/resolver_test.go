package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference date used across relative-timeframe tests: Monday 2024-01-15.
var refMonday = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) (time.Time, time.Time) {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		time.Date(y, m, d, 23, 59, 59, microsecondCeil, time.UTC)
}

func newTestResolver() *Resolver {
	return NewResolver(nil, 5, nil)
}

func TestResolveAbsoluteDates(t *testing.T) {
	wantStart, wantEnd := day(2024, time.January, 15)

	tests := []struct {
		name  string
		query string
	}{
		{"iso", "show receipts from 2024-01-15"},
		{"slash full year", "what did I buy on 1/15/2024"},
		{"slash two digit year", "receipts on 1/15/24"},
		{"textual with year", "purchases on January 15, 2024"},
		{"textual ordinal", "purchases on January 15th 2024"},
	}

	r := newTestResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r.Resolve(context.Background(), tt.query, refMonday)
			require.NotNil(t, c)
			require.NotNil(t, c.Range)
			assert.Equal(t, wantStart, c.Range.Start)
			assert.Equal(t, wantEnd, c.Range.End)
		})
	}
}

func TestResolveTextualDateInfersYear(t *testing.T) {
	r := newTestResolver()
	ref := time.Date(2024, time.February, 7, 0, 0, 0, 0, time.UTC)

	// Month later in the calendar than the reference month rolls back a year.
	c := r.Resolve(context.Background(), "receipt from December 5", ref)
	require.NotNil(t, c)
	require.NotNil(t, c.Range)
	assert.Equal(t, 2023, c.Range.Start.Year())
	assert.Equal(t, time.December, c.Range.Start.Month())

	// Month at or before the reference month keeps the reference year.
	c = r.Resolve(context.Background(), "receipt from January 5", ref)
	require.NotNil(t, c)
	assert.Equal(t, 2024, c.Range.Start.Year())
}

func TestResolveMonthWithYear(t *testing.T) {
	r := newTestResolver()
	c := r.Resolve(context.Background(), "how much did I spend in January 2024", refMonday)
	require.NotNil(t, c)
	require.NotNil(t, c.Range)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2024, time.January, 31, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)
	require.NotNil(t, c.Coarse)
	assert.Equal(t, time.January, c.Coarse.Month)
	assert.Equal(t, 2024, c.Coarse.Year)
}

func TestResolveMonthOnlyWidensAcrossYears(t *testing.T) {
	r := newTestResolver()
	c := r.Resolve(context.Background(), "show me receipts from March", refMonday)
	require.NotNil(t, c)
	require.NotNil(t, c.Range)

	// Reference year 2024, lookback 5: spans March 2019 through March 2024.
	assert.Equal(t, time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2024, time.March, 31, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)

	require.NotNil(t, c.Coarse)
	assert.Equal(t, time.March, c.Coarse.Month)
	assert.Zero(t, c.Coarse.Year)
}

func TestResolveMonthOnlyLookbackConfigurable(t *testing.T) {
	r := NewResolver(nil, 2, nil)
	c := r.Resolve(context.Background(), "receipts from March", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, 2022, c.Range.Start.Year())
}

func TestResolveRelativeTimeframes(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			"last week",
			"what did I buy last week",
			time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.January, 14, 23, 59, 59, microsecondCeil, time.UTC),
		},
		{
			"this week ends at reference instant",
			"spending this week",
			time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			refMonday,
		},
		{
			"today",
			"what did I buy today",
			time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			refMonday,
		},
		{
			"yesterday",
			"receipts from yesterday",
			time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.January, 14, 23, 59, 59, microsecondCeil, time.UTC),
		},
		{
			"last month",
			"how much last month",
			time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2023, time.December, 31, 23, 59, 59, microsecondCeil, time.UTC),
		},
		{
			"last year",
			"spending last year",
			time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2023, time.December, 31, 23, 59, 59, microsecondCeil, time.UTC),
		},
		{
			"last N days",
			"past 10 days of purchases",
			time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
			refMonday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r.Resolve(context.Background(), tt.query, refMonday)
			require.NotNil(t, c)
			require.NotNil(t, c.Range)
			assert.Equal(t, tt.wantStart, c.Range.Start)
			assert.Equal(t, tt.wantEnd, c.Range.End)
		})
	}
}

func TestResolveQuarters(t *testing.T) {
	r := newTestResolver()
	c := r.Resolve(context.Background(), "spending in Q4 2023", refMonday)
	require.NotNil(t, c)
	require.NotNil(t, c.Range)
	assert.Equal(t, time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2023, time.December, 31, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)
}

func TestHolidayDates(t *testing.T) {
	assert.Equal(t, time.Date(2023, time.November, 23, 0, 0, 0, 0, time.UTC), thanksgiving(2023))
	assert.Equal(t, time.Date(2024, time.November, 28, 0, 0, 0, 0, time.UTC), thanksgiving(2024))
	assert.Equal(t, time.Date(2023, time.May, 29, 0, 0, 0, 0, time.UTC), memorialDay(2023))
	assert.Equal(t, time.Date(2023, time.September, 4, 0, 0, 0, 0, time.UTC), laborDay(2023))
}

func TestResolveHolidayPeriods(t *testing.T) {
	r := newTestResolver()

	c := r.Resolve(context.Background(), "receipts from thanksgiving 2023", refMonday)
	require.NotNil(t, c)
	wantStart, wantEnd := day(2023, time.November, 23)
	assert.Equal(t, wantStart, c.Range.Start)
	assert.Equal(t, wantEnd, c.Range.End)

	c = r.Resolve(context.Background(), "week before thanksgiving 2023", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.November, 16, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2023, time.November, 22, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)

	c = r.Resolve(context.Background(), "week after thanksgiving 2023", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.November, 24, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2023, time.November, 30, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)
}

func TestResolveContextualRanges(t *testing.T) {
	r := newTestResolver()

	// Absolute-date strategies run first, so exercise the since/between
	// paths directly with clauses they own.
	c := r.tryContextualRange("spending since december 1, 2023", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, refMonday, c.Range.End)

	c = r.Resolve(context.Background(), "everything since 2023", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, refMonday, c.Range.End)

	// "between A and B" is checked after absolute strategies miss; use
	// forms the absolute strategies do not claim first.
	c = r.tryContextualRange("between 1/2/2023 and 1/9/2023", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2023, time.January, 9, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)
}

func TestResolveNoTemporalExpression(t *testing.T) {
	r := newTestResolver()
	assert.Nil(t, r.Resolve(context.Background(), "how much did I spend at Walmart", refMonday))
}

type stubDateExtractor struct {
	rng *DateRange
	err error
}

func (s *stubDateExtractor) ExtractDateRange(_ context.Context, _ string, _ time.Time) (*DateRange, error) {
	return s.rng, s.err
}

func TestResolveLLMFallback(t *testing.T) {
	rng := &DateRange{
		Start: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
	}
	r := NewResolver(&stubDateExtractor{rng: rng}, 5, nil)

	c := r.Resolve(context.Background(), "around the start of summer that year", refMonday)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), c.Range.Start)
	assert.Equal(t, time.Date(2023, time.June, 10, 23, 59, 59, microsecondCeil, time.UTC), c.Range.End)
}

func TestResolveLLMFallbackFailureDegrades(t *testing.T) {
	r := NewResolver(&stubDateExtractor{err: errors.New("boom")}, 5, nil)
	assert.Nil(t, r.Resolve(context.Background(), "around the start of summer", refMonday))
}

func TestDayBounded(t *testing.T) {
	dr := DayBounded(
		time.Date(2023, time.July, 1, 14, 30, 0, 0, time.UTC),
		time.Date(2023, time.July, 31, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), dr.Start)
	assert.Equal(t, time.Date(2023, time.July, 31, 23, 59, 59, microsecondCeil, time.UTC), dr.End)
}
