package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const batchSize = 500

// stateRow is the persisted form of domain.StateRecord.
type stateRow struct {
	Date      string `gorm:"primaryKey;type:text"`
	State     string `gorm:"primaryKey;type:text"`
	Infected  int64
	Confirmed int64
	Dead      int64
	Recovered int64
	Day       int
}

func (stateRow) TableName() string { return "state_records" }

// cityRow is the persisted form of domain.CityRecord.
type cityRow struct {
	Date      string `gorm:"primaryKey;type:text"`
	State     string `gorm:"primaryKey;type:text;index"`
	City      string `gorm:"primaryKey;type:text"`
	Dead      int64
	Confirmed int64
	Day       int
}

func (cityRow) TableName() string { return "city_records" }

// Store keeps the most recently persisted tables in a SQLite database.
// It implements pipeline.Sink.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&stateRow{}, &cityRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// WriteStates replaces the stored national table. Rows from earlier runs are
// removed in the same transaction, so day indexes and the threshold always
// belong to the latest run.
func (s *Store) WriteStates(ctx context.Context, table []domain.StateRecord) error {
	if len(table) == 0 {
		return nil
	}
	rows := make([]stateRow, len(table))
	for i, r := range table {
		rows[i] = stateRow{
			Date:      r.Date.Format(domain.DateLayout),
			State:     r.State,
			Infected:  r.Infected,
			Confirmed: r.Confirmed,
			Dead:      r.Dead,
			Recovered: r.Recovered,
			Day:       r.Day,
		}
	}
	err := s.replace(ctx, &rows, func(tx *gorm.DB) *gorm.DB {
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&stateRow{})
	})
	if err != nil {
		return fmt.Errorf("replace state records: %w", err)
	}
	s.logger.Info("rows stored", "table", "state_records", "count", len(rows))
	return nil
}

// WriteCities replaces the stored city rows of one state. Other states are
// left untouched.
func (s *Store) WriteCities(ctx context.Context, state string, table []domain.CityRecord) error {
	if len(table) == 0 {
		return nil
	}
	rows := make([]cityRow, len(table))
	for i, r := range table {
		rows[i] = cityRow{
			Date:      r.Date.Format(domain.DateLayout),
			State:     r.State,
			City:      r.City,
			Dead:      r.Dead,
			Confirmed: r.Confirmed,
			Day:       r.Day,
		}
	}
	err := s.replace(ctx, &rows, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("state = ?", state).Delete(&cityRow{})
	})
	if err != nil {
		return fmt.Errorf("replace city records for %s: %w", state, err)
	}
	s.logger.Info("rows stored", "table", "city_records", "state", state, "count", len(rows))
	return nil
}

// replace runs purge and then inserts rows, both in one transaction.
// The upsert clause covers duplicate keys within rows.
func (s *Store) replace(ctx context.Context, rows any, purge func(tx *gorm.DB) *gorm.DB) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purge(tx).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(rows, batchSize).Error
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
