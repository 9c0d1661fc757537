package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStateRJ = "RJ"
	testStateSP = "SP"
	testCityRio = "Rio de Janeiro/RJ"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleStateRows() []RawStateRow {
	return []RawStateRow{
		{Date: day("2020-02-25"), State: testStateSP, NewCases: 1, TotalCases: 1},
		{Date: day("2020-03-01"), State: testStateRJ, NewCases: 3, TotalCases: 3},
		{Date: day("2020-03-05"), State: testStateSP, NewCases: 5, TotalCases: 6, Deaths: 0},
		{Date: day("2020-03-10"), State: testStateRJ, NewCases: 47, TotalCases: 50, Deaths: 1},
		{Date: day("2020-03-10"), State: testStateSP, NewCases: 10, TotalCases: 16, Deaths: 1, Recovered: 2},
		{Date: day("2020-03-12"), State: testStateRJ, NewCases: 10, TotalCases: 60, Deaths: 2, Recovered: 4},
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2020-03-10 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.March, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("10/03/2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse date")
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected int64
		wantErr  bool
	}{
		{"integer", "1234", 1234, false},
		{"empty is zero", "", 0, false},
		{"blank is zero", "  ", 0, false},
		{"whole decimal", "12.0", 12, false},
		{"fraction", "12.5", 0, true},
		{"garbage", "abc", 0, true},
		{"nan", "NaN", 0, true},
		{"negative delta", "-2", -2, false},
		{"exponent", "1e3", 1000, false},
		{"above int64", "1e20", 0, true},
		{"below int64", "-1e20", 0, true},
		{"two to the 63", "9223372036854775808.0", 0, true},
		{"infinity", "Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestShapeStates_ThresholdAndDayIndex(t *testing.T) {
	table := ShapeStates(sampleStateRows(), DefaultMinConfirmed)

	want := []StateRecord{
		{Date: day("2020-03-05"), State: testStateSP, Infected: 5, Confirmed: 6, Dead: 0, Recovered: 0, Day: 0},
		{Date: day("2020-03-10"), State: testStateRJ, Infected: 47, Confirmed: 50, Dead: 1, Recovered: 0, Day: 5},
		{Date: day("2020-03-10"), State: testStateSP, Infected: 10, Confirmed: 16, Dead: 1, Recovered: 2, Day: 5},
		{Date: day("2020-03-12"), State: testStateRJ, Infected: 10, Confirmed: 60, Dead: 2, Recovered: 4, Day: 7},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Fatalf("national table mismatch (-want +got):\n%s", diff)
	}
}

func TestShapeStates_Properties(t *testing.T) {
	for _, threshold := range []int64{0, 5, 15, 55, 1000} {
		table := ShapeStates(sampleStateRows(), threshold)

		hasZero := false
		for _, r := range table {
			assert.Greater(t, r.Confirmed, threshold)
			assert.GreaterOrEqual(t, r.Day, 0)
			if r.Day == 0 {
				hasZero = true
			}
		}
		if len(table) > 0 {
			assert.True(t, hasZero, "threshold %d: no row with day 0", threshold)
		}

		for _, state := range []string{testStateRJ, testStateSP} {
			slice := SliceState(table, state)
			sorted := append([]StateDayRecord(nil), slice...)
			sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
			for i := 1; i < len(sorted); i++ {
				assert.GreaterOrEqual(t, sorted[i].Day, sorted[i-1].Day)
			}
		}
	}
}

func TestShapeStates_EndToEndExample(t *testing.T) {
	rows := []RawStateRow{
		{Date: day("2020-03-01"), State: testStateRJ, TotalCases: 3},
		{Date: day("2020-03-10"), State: testStateRJ, TotalCases: 50},
	}

	table := ShapeStates(rows, 5)

	require.Len(t, table, 1)
	assert.Equal(t, day("2020-03-10"), table[0].Date)
	assert.Equal(t, 0, table[0].Day)
	assert.Equal(t, int64(0), table[0].Recovered)
	assert.Equal(t, int64(50), table[0].Confirmed)
}

func TestShapeStates_AllFilteredOut(t *testing.T) {
	table := ShapeStates(sampleStateRows(), 1_000_000)
	assert.NotNil(t, table)
	assert.Empty(t, table)
	assert.Empty(t, SliceState(table, testStateRJ))
}

func TestShapeStates_PreservesSourceOrder(t *testing.T) {
	rows := []RawStateRow{
		{Date: day("2020-03-12"), State: testStateRJ, TotalCases: 60},
		{Date: day("2020-03-10"), State: testStateRJ, TotalCases: 50},
	}

	table := ShapeStates(rows, 5)

	require.Len(t, table, 2)
	assert.Equal(t, 2, table[0].Day)
	assert.Equal(t, 0, table[1].Day)
}

func TestSliceState(t *testing.T) {
	table := ShapeStates(sampleStateRows(), DefaultMinConfirmed)

	rj := SliceState(table, testStateRJ)

	want := []StateDayRecord{
		{Date: day("2020-03-10"), Infected: 47, Confirmed: 50, Dead: 1, Day: 5},
		{Date: day("2020-03-12"), Infected: 10, Confirmed: 60, Dead: 2, Recovered: 4, Day: 7},
	}
	if diff := cmp.Diff(want, rj); diff != "" {
		t.Fatalf("RJ slice mismatch (-want +got):\n%s", diff)
	}

	count := 0
	for _, r := range table {
		if r.State == testStateRJ {
			count++
		}
	}
	assert.Len(t, rj, count)
}

func TestSliceState_Unknown(t *testing.T) {
	table := ShapeStates(sampleStateRows(), DefaultMinConfirmed)
	out := SliceState(table, "XX")
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func sampleCityRows() []RawCityRow {
	return []RawCityRow{
		{Date: day("2020-02-25"), State: testStateSP, City: "São Paulo/SP", TotalCases: 1},
		{Date: day("2020-03-05"), State: testStateRJ, City: testCityRio, TotalCases: 1},
		{Date: day("2020-03-06"), State: testStateRJ, City: "Barra Mansa/RJ", TotalCases: 1},
		{Date: day("2020-03-07"), State: testStateRJ, City: testCityRio, TotalCases: 3, Deaths: 0},
		{Date: day("2020-03-10"), State: testStateRJ, City: testCityRio, TotalCases: 10, Deaths: 1},
		{Date: day("2020-03-10"), State: testStateSP, City: "São Paulo/SP", TotalCases: 20, Deaths: 1},
	}
}

func TestShapeCities(t *testing.T) {
	table := ShapeCities(sampleCityRows(), testStateRJ)

	want := []CityRecord{
		{Date: day("2020-03-05"), State: testStateRJ, City: testCityRio, Confirmed: 1, Day: 0},
		{Date: day("2020-03-06"), State: testStateRJ, City: "Barra Mansa/RJ", Confirmed: 1, Day: 1},
		{Date: day("2020-03-07"), State: testStateRJ, City: testCityRio, Confirmed: 3, Day: 2},
		{Date: day("2020-03-10"), State: testStateRJ, City: testCityRio, Confirmed: 10, Dead: 1, Day: 5},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Fatalf("city table mismatch (-want +got):\n%s", diff)
	}
}

func TestShapeCities_DayIndexIsPerState(t *testing.T) {
	sp := ShapeCities(sampleCityRows(), testStateSP)
	require.Len(t, sp, 2)
	assert.Equal(t, 0, sp[0].Day)
	assert.Equal(t, 14, sp[1].Day)

	rj := ShapeCities(sampleCityRows(), testStateRJ)
	assert.Equal(t, 0, rj[0].Day, "RJ day index must not be relative to SP's first date")
}

func TestShapeCities_UnknownState(t *testing.T) {
	out := ShapeCities(sampleCityRows(), "AC")
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSliceCity(t *testing.T) {
	table := ShapeCities(sampleCityRows(), testStateRJ)

	rio := SliceCity(table, testCityRio)

	want := []CityDayRecord{
		{Date: day("2020-03-05"), Confirmed: 1, Day: 0},
		{Date: day("2020-03-07"), Confirmed: 3, Day: 2},
		{Date: day("2020-03-10"), Confirmed: 10, Dead: 1, Day: 5},
	}
	if diff := cmp.Diff(want, rio); diff != "" {
		t.Fatalf("city slice mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, SliceCity(table, "São Paulo/SP"), "city slice is scoped to the state table")
	assert.Empty(t, SliceCity(table, "Nowhere/RJ"))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day("2020-03-10"), day("2020-03-10")))
	assert.Equal(t, 1, DaysBetween(day("2020-02-28"), day("2020-02-29")))
	assert.Equal(t, 366, DaysBetween(day("2020-01-01"), day("2021-01-01")))

	local := time.FixedZone("BRT", -3*60*60)
	start := time.Date(2020, time.March, 10, 0, 0, 0, 0, local)
	assert.Equal(t, 2, DaysBetween(start, day("2020-03-12")))
}

func TestLatestDate(t *testing.T) {
	_, ok := LatestStateDate(nil)
	assert.False(t, ok)
	_, ok = LatestCityDate(nil)
	assert.False(t, ok)

	latest, ok := LatestStateDate(ShapeStates(sampleStateRows(), 0))
	require.True(t, ok)
	assert.Equal(t, day("2020-03-12"), latest)

	latest, ok = LatestCityDate(ShapeCities(sampleCityRows(), testStateRJ))
	require.True(t, ok)
	assert.Equal(t, day("2020-03-10"), latest)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "2020-04-01_Brazil_by_day.csv", StatesFileName(day("2020-04-01")))
	assert.Equal(t, "2020-04-01_SP_cities_by_day.csv", CitiesFileName(day("2020-04-01"), testStateSP))
}

func TestIncidencePer100k(t *testing.T) {
	assert.InEpsilon(t, 100.0, IncidencePer100k(17_264, 17_264_000), 1e-9)
	assert.Zero(t, IncidencePer100k(10, 0))
	assert.Zero(t, IncidencePer100k(10, -1))
}
