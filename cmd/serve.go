package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"disasterwatch/internal/bootstrap"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the schema and serve the HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "disasterwatch listening on %s\n", app.HTTP.Addr()); err != nil {
			return errs.Wrap(err, "write serve output")
		}

		select {
		case <-ctx.Done():
			logging.Info(ctx, "shutdown signal received")
			return nil
		case err := <-app.HTTP.Err():
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http")
		}
	}, bootstrap.ServeModule),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
