// Command covidbr fetches the wcota/covid19br feeds and shapes them into
// per-day cumulative tables for Brazil, its states, and its cities.
//
// Usage:
//
//	covidbr states [--min-confirmed N] [--store]
//	covidbr state RJ
//	covidbr cities SP [--store]
//	covidbr city RJ "Petrópolis/RJ"
//	covidbr serve
//	covidbr validate data/2020-04-01_SP_cities_by_day.csv
//
// Settings come from the environment (see internal/config).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
