package domain

import "time"

// DateLayout is the calendar date format used by the upstream feeds and by
// persisted output.
const DateLayout = "2006-01-02"

// RawStateRow is one row of the state-level feed after type conversion,
// still carrying the upstream column names.
type RawStateRow struct {
	Date       time.Time
	State      string
	NewCases   int64
	TotalCases int64
	Deaths     int64
	Recovered  int64
}

// RawCityRow is one row of the city-level feed after type conversion.
type RawCityRow struct {
	Date       time.Time
	State      string
	City       string
	TotalCases int64
	Deaths     int64
}

// StateRecord is one day of cumulative counts for a single state.
type StateRecord struct {
	Date      time.Time `json:"date"`
	State     string    `json:"state"`
	Infected  int64     `json:"infected"`
	Confirmed int64     `json:"confirmed"`
	Dead      int64     `json:"dead"`
	Recovered int64     `json:"recovered"`
	Day       int       `json:"day"`
}

// StateDayRecord is a StateRecord scoped to one state, without the state code.
type StateDayRecord struct {
	Date      time.Time `json:"date"`
	Infected  int64     `json:"infected"`
	Confirmed int64     `json:"confirmed"`
	Dead      int64     `json:"dead"`
	Recovered int64     `json:"recovered"`
	Day       int       `json:"day"`
}

// CityRecord is one day of cumulative counts for a single city.
// The city feed has no recovered column.
type CityRecord struct {
	Date      time.Time `json:"date"`
	State     string    `json:"state"`
	City      string    `json:"city"`
	Dead      int64     `json:"dead"`
	Confirmed int64     `json:"confirmed"`
	Day       int       `json:"day"`
}

// CityDayRecord is a CityRecord scoped to one city, without state and city.
type CityDayRecord struct {
	Date      time.Time `json:"date"`
	Dead      int64     `json:"dead"`
	Confirmed int64     `json:"confirmed"`
	Day       int       `json:"day"`
}

// StateColumns is the header of a persisted national table.
var StateColumns = []string{"date", "state", "infected", "confirmed", "dead", "recovered", "day"}

// CityColumns is the header of a persisted city table.
var CityColumns = []string{"date", "state", "city", "dead", "confirmed", "day"}
