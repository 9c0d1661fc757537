package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	httpadapter "github.com/couchcryptid/covid-br-etl/internal/adapter/http"
	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "covidbr",
		Short:         "Daily COVID-19 series for Brazil from the wcota/covid19br feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newStatesCmd(),
		newStateCmd(),
		newCitiesCmd(),
		newCityCmd(),
		newServeCmd(),
		newValidateCmd(),
	)
	return root
}

// thresholdFlag resolves --min-confirmed, falling back to MIN_CONFIRMED.
func thresholdFlag(cmd *cobra.Command, a *app, v int64) (int64, error) {
	if !cmd.Flags().Changed("min-confirmed") {
		return a.cfg.MinConfirmed, nil
	}
	if v < 0 {
		return 0, errors.New("--min-confirmed must not be negative")
	}
	return v, nil
}

func newStatesCmd() *cobra.Command {
	var (
		minConfirmed int64
		store        bool
	)
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Print the national per-day table of every state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cliLogger, func(ctx context.Context, a *app) error {
				threshold, err := thresholdFlag(cmd, a, minConfirmed)
				if err != nil {
					return err
				}
				table, err := a.loader.LoadStates(ctx, threshold, store)
				if err != nil {
					return err
				}
				latest := latestByState(table)
				for _, area := range []string{"TOTAL", "RJ"} {
					if r, ok := latest[area]; ok {
						a.logIncidence(area, r.Date, r.Confirmed)
					}
				}
				return printJSON(cmd.OutOrStdout(), table)
			})
		},
	}
	cmd.Flags().Int64Var(&minConfirmed, "min-confirmed", domain.DefaultMinConfirmed, "keep rows with more confirmed cases than this")
	cmd.Flags().BoolVar(&store, "store", false, "persist the table to the configured sinks")
	return cmd
}

func newStateCmd() *cobra.Command {
	var (
		minConfirmed int64
		store        bool
	)
	cmd := &cobra.Command{
		Use:   "state <UF>",
		Short: "Print the per-day series of one state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := args[0]
			return withApp(cmd, cliLogger, func(ctx context.Context, a *app) error {
				threshold, err := thresholdFlag(cmd, a, minConfirmed)
				if err != nil {
					return err
				}
				table, err := a.loader.LoadStates(ctx, threshold, store)
				if err != nil {
					return err
				}
				slice := domain.SliceState(table, state)
				if len(slice) == 0 {
					a.logger.Warn("state slice is empty", "state", state)
				} else {
					last := slice[len(slice)-1]
					a.logIncidence(state, last.Date, last.Confirmed)
				}
				return printJSON(cmd.OutOrStdout(), slice)
			})
		},
	}
	cmd.Flags().Int64Var(&minConfirmed, "min-confirmed", domain.DefaultMinConfirmed, "keep rows with more confirmed cases than this")
	cmd.Flags().BoolVar(&store, "store", false, "persist the national table to the configured sinks")
	return cmd
}

func newCitiesCmd() *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "cities <UF>",
		Short: "Print the per-day table of every city in a state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := args[0]
			return withApp(cmd, cliLogger, func(ctx context.Context, a *app) error {
				table, err := a.loader.LoadCities(ctx, state, store)
				if err != nil {
					return err
				}
				if len(table) == 0 {
					a.logger.Warn("no cities found", "state", state)
				}
				return printJSON(cmd.OutOrStdout(), table)
			})
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "persist the table to the configured sinks")
	return cmd
}

func newCityCmd() *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "city <UF> <CITY>",
		Short: `Print the per-day series of one city, named as in the feed ("Petrópolis/RJ")`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, city := args[0], args[1]
			return withApp(cmd, cliLogger, func(ctx context.Context, a *app) error {
				table, err := a.loader.LoadCities(ctx, state, store)
				if err != nil {
					return err
				}
				slice := domain.SliceCity(table, city)
				if len(slice) == 0 {
					a.logger.Warn("city slice is empty", "state", state, "city", city)
				}
				return printJSON(cmd.OutOrStdout(), slice)
			})
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "persist the state's city table to the configured sinks")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tables over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, serviceLogger, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.loader, a.cfg.MinConfirmed, a.logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
