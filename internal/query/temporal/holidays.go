package temporal

import "time"

// holiday maps a lowercase name to its calendar date for a given year.
type holiday struct {
	name string
	date func(year int) time.Time
}

// holidays is checked in order; longer names precede their prefixes so
// "new years" wins over "new year".
var holidays = []holiday{
	{"thanksgiving", thanksgiving},
	{"black friday", func(y int) time.Time { return thanksgiving(y).AddDate(0, 0, 1) }},
	{"cyber monday", func(y int) time.Time { return thanksgiving(y).AddDate(0, 0, 4) }},
	{"christmas", fixedDate(time.December, 25)},
	{"new years", fixedDate(time.January, 1)},
	{"new year", fixedDate(time.January, 1)},
	{"fourth of july", fixedDate(time.July, 4)},
	{"july 4th", fixedDate(time.July, 4)},
	{"halloween", fixedDate(time.October, 31)},
	{"memorial day", memorialDay},
	{"labor day", laborDay},
}

func fixedDate(month time.Month, day int) func(int) time.Time {
	return func(year int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
}

// thanksgiving is the fourth Thursday of November.
func thanksgiving(year int) time.Time {
	nov1 := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
	untilThursday := (int(time.Thursday) - int(nov1.Weekday()) + 7) % 7
	return nov1.AddDate(0, 0, untilThursday+21)
}

// memorialDay is the last Monday of May.
func memorialDay(year int) time.Time {
	may31 := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	back := (int(may31.Weekday()) - int(time.Monday) + 7) % 7
	return may31.AddDate(0, 0, -back)
}

// laborDay is the first Monday of September.
func laborDay(year int) time.Time {
	sep1 := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
	untilMonday := (int(time.Monday) - int(sep1.Weekday()) + 7) % 7
	return sep1.AddDate(0, 0, untilMonday)
}
