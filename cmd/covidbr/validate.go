package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/spf13/cobra"
)

const (
	statesSuffix = "_Brazil_by_day.csv"
	citiesSuffix = "_cities_by_day.csv"
)

var errValidationFailed = errors.New("validation failed")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

// parsedRow holds the typed values the day-index checks need.
type parsedRow struct {
	lineNum int
	date    time.Time
	group   string
	day     int
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check persisted CSV tables for header, value, day-index and file-name consistency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				ok, err := validateFile(cmd.OutOrStdout(), path)
				if err != nil {
					return err
				}
				if !ok {
					failed = true
				}
			}
			if failed {
				return errValidationFailed
			}
			return nil
		},
	}
}

// validateFile runs every phase against one persisted table and prints a
// report to out. It returns false when any phase failed.
func validateFile(out io.Writer, path string) (bool, error) {
	name := filepath.Base(path)

	var (
		columns   []string
		countCols []string
		deltaCols []string
		byCity    bool
	)
	switch {
	case strings.HasSuffix(name, statesSuffix):
		columns = domain.StateColumns
		countCols = []string{"confirmed", "dead", "recovered"}
		// Daily deltas go negative when upstream corrects earlier counts.
		deltaCols = []string{"infected"}
	case strings.HasSuffix(name, citiesSuffix):
		columns = domain.CityColumns
		countCols = []string{"dead", "confirmed"}
		byCity = true
	default:
		return false, fmt.Errorf("%s: not a persisted table name", name)
	}

	header, rows, err := loadCSV(path)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}

	parsed, values := validateValues(rows, countCols, deltaCols, byCity)
	phases := []*phase{
		validateHeader(header, columns),
		values,
		validateDayIndex(parsed),
		validateFileName(name, parsed, byCity),
	}

	fmt.Fprintf(out, "=== %s (%d rows) ===\n", name, len(rows))
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-28s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}
	return allPassed, nil
}

func loadCSV(path string) ([]string, []csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) < 2 {
		return nil, nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return header, rows, nil
}

func validateHeader(header, want []string) *phase {
	p := &phase{name: "Header"}
	if !slices.Equal(header, want) {
		p.errorf("header %q, want %q", strings.Join(header, ","), strings.Join(want, ","))
	}
	return p
}

func validateValues(rows []csvRow, countCols, deltaCols []string, byCity bool) ([]parsedRow, *phase) {
	p := &phase{name: "Values"}
	parsed := make([]parsedRow, 0, len(rows))

	for _, row := range rows {
		date, err := domain.ParseDate(row.fields["date"])
		if err != nil {
			p.errorf("line %d: %v", row.lineNum, err)
			continue
		}
		state := row.fields["state"]
		if state == "" {
			p.errorf("line %d: state is empty", row.lineNum)
		}
		for _, col := range countCols {
			n, err := strconv.ParseInt(row.fields[col], 10, 64)
			if err != nil {
				p.errorf("line %d: %s %q is not an integer", row.lineNum, col, row.fields[col])
			} else if n < 0 {
				p.errorf("line %d: %s is negative (%d)", row.lineNum, col, n)
			}
		}
		for _, col := range deltaCols {
			if _, err := strconv.ParseInt(row.fields[col], 10, 64); err != nil {
				p.errorf("line %d: %s %q is not an integer", row.lineNum, col, row.fields[col])
			}
		}
		day, err := strconv.Atoi(row.fields["day"])
		if err != nil {
			p.errorf("line %d: day %q is not an integer", row.lineNum, row.fields["day"])
			continue
		}

		group := ""
		if byCity {
			group = state
			if row.fields["city"] == "" {
				p.errorf("line %d: city is empty", row.lineNum)
			}
		}
		parsed = append(parsed, parsedRow{lineNum: row.lineNum, date: date, group: group, day: day})
	}
	return parsed, p
}

// validateDayIndex recomputes each row's day from the earliest date of its
// group: the whole table for states, one state for cities.
func validateDayIndex(rows []parsedRow) *phase {
	p := &phase{name: "Day index"}

	start := make(map[string]time.Time)
	for _, r := range rows {
		if s, ok := start[r.group]; !ok || r.date.Before(s) {
			start[r.group] = r.date
		}
	}
	for _, r := range rows {
		want := domain.DaysBetween(start[r.group], r.date)
		if r.day != want {
			p.errorf("line %d: day %d, want %d", r.lineNum, r.day, want)
		}
	}
	return p
}

func validateFileName(name string, rows []parsedRow, byCity bool) *phase {
	p := &phase{name: "File name"}
	if len(rows) == 0 {
		p.errorf("no valid rows to derive the latest date from")
		return p
	}

	var latest time.Time
	for _, r := range rows {
		if r.date.After(latest) {
			latest = r.date
		}
	}

	want := domain.StatesFileName(latest)
	if byCity {
		want = domain.CitiesFileName(latest, rows[0].group)
	}
	if name != want {
		p.errorf("file name %q, want %q", name, want)
	}
	return p
}
