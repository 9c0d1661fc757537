package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/adapter/covid19br"
	"github.com/couchcryptid/covid-br-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/covid-br-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-br-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/covid-br-etl/internal/config"
	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/couchcryptid/covid-br-etl/internal/observability"
	"github.com/couchcryptid/covid-br-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const pushTimeout = 10 * time.Second

// processMetrics registers the loader metrics with the default registry once.
var processMetrics = sync.OnceValue(observability.NewMetrics)

// loggerFunc builds the logger for a command.
type loggerFunc func(cmd *cobra.Command, cfg *config.Config) *slog.Logger

// cliLogger logs to stderr; stdout carries the command's result.
func cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return observability.NewCLILogger(cmd.ErrOrStderr(), cfg)
}

func serviceLogger(_ *cobra.Command, cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg)
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	loader  *pipeline.Loader
	closers []io.Closer
}

func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics}

	client := covid19br.NewClient(cfg.StatesURL, cfg.CitiesURL, cfg.FetchTimeout, metrics, logger)

	sinks := []pipeline.Sink{csvfile.NewWriter(cfg.DataPath, logger)}

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, w)
		a.closers = append(a.closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		sinks = append(sinks, store)
		a.closers = append(a.closers, store)
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}

	a.loader = pipeline.New(client, sinks, logger, metrics)
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("sink close error", "error", err)
		}
	}
}

// withApp loads configuration, wires the app, runs fn, and pushes the run's
// metrics when a Pushgateway is configured.
func withApp(cmd *cobra.Command, newLogger loggerFunc, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cmd, cfg)
	metrics := processMetrics()

	a, err := newApp(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	runErr := fn(cmd.Context(), a)

	if cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), pushTimeout)
		defer cancel()
		if err := observability.Push(ctx, cfg.PushgatewayURL, prometheus.DefaultGatherer, cmd.Name()); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}

	return runErr
}

// logIncidence reports confirmed cases per 100k inhabitants for areas with a
// configured population.
func (a *app) logIncidence(state string, date time.Time, confirmed int64) {
	pop, ok := a.cfg.Population(state)
	if !ok {
		return
	}
	a.logger.Info("incidence",
		"state", state,
		"date", date.Format(domain.DateLayout),
		"confirmed", confirmed,
		"per_100k", domain.IncidencePer100k(confirmed, pop),
	)
}

// latestByState returns the most recent row of each state in the table.
func latestByState(table []domain.StateRecord) map[string]domain.StateRecord {
	latest := make(map[string]domain.StateRecord)
	for _, r := range table {
		if cur, ok := latest[r.State]; !ok || !r.Date.Before(cur.Date) {
			latest[r.State] = r
		}
	}
	return latest
}
