package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/bootstrap/database"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
	// HTTP is set only when the container was built with ServeModule.
	HTTP *HTTPServer
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := database.Migrate(ctx, a.DB); err != nil {
		return err
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
