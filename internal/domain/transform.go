package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultMinConfirmed is the confirmed-case threshold applied when the caller
// does not choose one. Rows must strictly exceed it to be kept.
const DefaultMinConfirmed = 5

// ParseDate parses an ISO calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// ParseCount parses a cumulative or daily count. Empty cells are zero.
// Whole-valued decimals such as "12.0" are accepted; fractions are not.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("parse count %q: invalid number", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("parse count %q: not a whole number", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("parse count %q: out of range", s)
	}
	return int64(f), nil
}

// ShapeStates turns the raw state feed into the national table: it renames
// the upstream counts, keeps rows whose confirmed count exceeds minConfirmed,
// and assigns each row its day index relative to the earliest kept date.
func ShapeStates(rows []RawStateRow, minConfirmed int64) []StateRecord {
	out := make([]StateRecord, 0, len(rows))
	for _, r := range rows {
		if r.TotalCases <= minConfirmed {
			continue
		}
		out = append(out, StateRecord{
			Date:      r.Date,
			State:     r.State,
			Infected:  r.NewCases,
			Confirmed: r.TotalCases,
			Dead:      r.Deaths,
			Recovered: r.Recovered,
		})
	}

	if len(out) == 0 {
		return out
	}
	first := out[0].Date
	for _, r := range out[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
	}
	for i := range out {
		out[i].Day = DaysBetween(first, out[i].Date)
	}
	return out
}

// SliceState returns the rows of the national table that belong to state,
// without the state column. An unknown state yields an empty table.
func SliceState(table []StateRecord, state string) []StateDayRecord {
	out := make([]StateDayRecord, 0)
	for _, r := range table {
		if r.State != state {
			continue
		}
		out = append(out, StateDayRecord{
			Date:      r.Date,
			Infected:  r.Infected,
			Confirmed: r.Confirmed,
			Dead:      r.Dead,
			Recovered: r.Recovered,
			Day:       r.Day,
		})
	}
	return out
}

// ShapeCities turns the raw city feed into one state's city table. The day
// index is relative to the earliest date within that state's rows.
func ShapeCities(rows []RawCityRow, state string) []CityRecord {
	out := make([]CityRecord, 0)
	for _, r := range rows {
		if r.State != state {
			continue
		}
		out = append(out, CityRecord{
			Date:      r.Date,
			State:     r.State,
			City:      r.City,
			Dead:      r.Deaths,
			Confirmed: r.TotalCases,
		})
	}

	if len(out) == 0 {
		return out
	}
	first := out[0].Date
	for _, r := range out[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
	}
	for i := range out {
		out[i].Day = DaysBetween(first, out[i].Date)
	}
	return out
}

// SliceCity returns the rows of a state's city table that belong to city,
// without the state and city columns. An unknown city yields an empty table.
func SliceCity(table []CityRecord, city string) []CityDayRecord {
	out := make([]CityDayRecord, 0)
	for _, r := range table {
		if r.City != city {
			continue
		}
		out = append(out, CityDayRecord{
			Date:      r.Date,
			Dead:      r.Dead,
			Confirmed: r.Confirmed,
			Day:       r.Day,
		})
	}
	return out
}

// DaysBetween returns the number of whole calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// LatestStateDate returns the most recent date in the national table.
// ok is false for an empty table.
func LatestStateDate(table []StateRecord) (latest time.Time, ok bool) {
	for _, r := range table {
		if !ok || r.Date.After(latest) {
			latest, ok = r.Date, true
		}
	}
	return latest, ok
}

// LatestCityDate returns the most recent date in a city table.
// ok is false for an empty table.
func LatestCityDate(table []CityRecord) (latest time.Time, ok bool) {
	for _, r := range table {
		if !ok || r.Date.After(latest) {
			latest, ok = r.Date, true
		}
	}
	return latest, ok
}

// StatesFileName is the persisted file name of a national table whose latest
// row is dated latest, e.g. "2020-04-01_Brazil_by_day.csv".
func StatesFileName(latest time.Time) string {
	return latest.Format(DateLayout) + "_Brazil_by_day.csv"
}

// CitiesFileName is the persisted file name of a state's city table, e.g.
// "2020-04-01_SP_cities_by_day.csv".
func CitiesFileName(latest time.Time, state string) string {
	return latest.Format(DateLayout) + "_" + state + "_cities_by_day.csv"
}

// IncidencePer100k is the number of confirmed cases per 100,000 inhabitants.
// It returns 0 when population is not positive.
func IncidencePer100k(confirmed int64, population float64) float64 {
	if population <= 0 {
		return 0
	}
	return float64(confirmed) / population * 100_000
}
