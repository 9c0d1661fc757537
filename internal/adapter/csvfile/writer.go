package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
)

// ErrEmptyTable is returned when asked to persist a table with no rows; the
// file name is derived from the latest row's date, so there is nothing to
// name the file after.
var ErrEmptyTable = errors.New("empty table")

// Writer persists tables as comma-separated files under a directory.
// It implements pipeline.Sink.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a CSV sink rooted at dir. The directory is created on
// first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "csv" }

// WriteStates writes the national table to <dir>/<latest>_Brazil_by_day.csv.
func (w *Writer) WriteStates(_ context.Context, table []domain.StateRecord) error {
	latest, ok := domain.LatestStateDate(table)
	if !ok {
		return ErrEmptyTable
	}
	path := filepath.Join(w.dir, domain.StatesFileName(latest))
	return w.writeFile(path, func(cw *csv.Writer) error {
		if err := cw.Write(domain.StateColumns); err != nil {
			return err
		}
		for _, r := range table {
			if err := cw.Write([]string{
				r.Date.Format(domain.DateLayout),
				r.State,
				formatInt(r.Infected),
				formatInt(r.Confirmed),
				formatInt(r.Dead),
				formatInt(r.Recovered),
				strconv.Itoa(r.Day),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCities writes a state's city table to
// <dir>/<latest>_<state>_cities_by_day.csv.
func (w *Writer) WriteCities(_ context.Context, state string, table []domain.CityRecord) error {
	latest, ok := domain.LatestCityDate(table)
	if !ok {
		return ErrEmptyTable
	}
	path := filepath.Join(w.dir, domain.CitiesFileName(latest, state))
	return w.writeFile(path, func(cw *csv.Writer) error {
		if err := cw.Write(domain.CityColumns); err != nil {
			return err
		}
		for _, r := range table {
			if err := cw.Write([]string{
				r.Date.Format(domain.DateLayout),
				r.State,
				r.City,
				formatInt(r.Dead),
				formatInt(r.Confirmed),
				strconv.Itoa(r.Day),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFile renders into a temp file in the target directory and renames it
// into place, so readers never see a partially written table.
func (w *Writer) writeFile(path string, render func(*csv.Writer) error) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := encode(tmp, render); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	w.logger.Info("table written", "path", path)
	return nil
}

func encode(out io.Writer, render func(*csv.Writer) error) error {
	cw := csv.NewWriter(out)
	if err := render(cw); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
