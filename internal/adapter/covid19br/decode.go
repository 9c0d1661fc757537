package covid19br

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
)

// ErrMissingColumn is returned when a feed header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

var (
	stateFeedColumns = []string{"date", "state", "newCases", "totalCases", "deaths", "recovered"}
	cityFeedColumns  = []string{"date", "state", "city", "totalCases", "deaths"}
)

// DecodeStates parses the state-level feed. Columns are selected by header
// name; any others are ignored. Empty counts become zero.
func DecodeStates(r io.Reader) ([]domain.RawStateRow, error) {
	var rows []domain.RawStateRow
	err := decode(r, stateFeedColumns, func(get func(string) string) error {
		date, err := domain.ParseDate(get("date"))
		if err != nil {
			return err
		}
		counts, err := parseCounts(get, "newCases", "totalCases", "deaths", "recovered")
		if err != nil {
			return err
		}
		rows = append(rows, domain.RawStateRow{
			Date:       date,
			State:      get("state"),
			NewCases:   counts[0],
			TotalCases: counts[1],
			Deaths:     counts[2],
			Recovered:  counts[3],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode states feed: %w", err)
	}
	return rows, nil
}

// DecodeCities parses the city-level feed.
func DecodeCities(r io.Reader) ([]domain.RawCityRow, error) {
	var rows []domain.RawCityRow
	err := decode(r, cityFeedColumns, func(get func(string) string) error {
		date, err := domain.ParseDate(get("date"))
		if err != nil {
			return err
		}
		counts, err := parseCounts(get, "totalCases", "deaths")
		if err != nil {
			return err
		}
		rows = append(rows, domain.RawCityRow{
			Date:       date,
			State:      get("state"),
			City:       get("city"),
			TotalCases: counts[0],
			Deaths:     counts[1],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode cities feed: %w", err)
	}
	return rows, nil
}

// decode reads a header row, checks that every wanted column is present and
// calls fn once per data row with an accessor keyed by column name.
func decode(r io.Reader, wanted []string, fn func(get func(string) string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty feed", ErrMissingColumn)
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 BOM from the first header cell.
		index[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, col := range wanted {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if err := fn(get); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func parseCounts(get func(string) string, cols ...string) ([]int64, error) {
	out := make([]int64, len(cols))
	for i, col := range cols {
		n, err := domain.ParseCount(get(col))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		out[i] = n
	}
	return out, nil
}
