package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "disasterwatch",
	Short:        "Disaster reporting and coordination backend",
	Long:         "Disaster records with model-assisted geocoding, social media monitoring and nearby resources.",
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithLogger(ctx, logging.New(rootCmd.ErrOrStderr(), "text"))
	ctx = logging.WithAttrs(ctx, slog.String("app", "disasterwatch"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
}
