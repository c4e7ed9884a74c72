package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"go.uber.org/fx"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/events"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/transport/httpapi"
	"disasterwatch/internal/usecase/disasters"
)

// ServeModule adds schema migration, the HTTP server and config hot reload
// on top of DomainModule.
var ServeModule = fx.Options(
	DomainModule,
	fx.Invoke(migrateOnStart),
	fx.Provide(provideHTTPServer),
	fx.Invoke(registerHTTPServer),
	fx.Invoke(watchConfig),
)

// HTTPServer is the API server plus a channel reporting a failed Serve.
type HTTPServer struct {
	srv  *http.Server
	addr net.Addr
	errc chan error
}

// Err reports a Serve failure. It is never closed.
func (s *HTTPServer) Err() <-chan error {
	return s.errc
}

// Addr is the bound listen address once the server has started.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

func migrateOnStart(lc fx.Lifecycle, app *App) {
	lc.Append(fx.Hook{
		OnStart: app.InitSchema,
	})
}

func provideHTTPServer(cfg config.Config, svc *disasters.Service, hub *events.Hub, metrics *observability.Metrics) *HTTPServer {
	handler := httpapi.NewRouter(httpapi.Deps{
		Config:  cfg.HTTP,
		Service: svc,
		Stream:  hub,
		Metrics: metrics,
	})
	return &HTTPServer{
		srv:  httpapi.NewServer(cfg.HTTP, handler),
		errc: make(chan error, 1),
	}
}

func registerHTTPServer(lc fx.Lifecycle, ctx context.Context, s *HTTPServer) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.http"))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", s.srv.Addr)
			if err != nil {
				return errs.Wrapf(err, "listen %s", s.srv.Addr)
			}
			s.addr = ln.Addr()
			logging.Info(logCtx, "http server listening", slog.String("addr", ln.Addr().String()))

			go func() {
				if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logging.Error(logCtx, "http server stopped", slog.Any("err", errs.Loggable(err)))
					s.errc <- err
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logging.Info(logCtx, "http server shutting down")
			if err := s.srv.Shutdown(stopCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		},
	})
}

type watchParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

// watchConfig re-applies the log level when the config file changes.
func watchConfig(p watchParams) error {
	return config.Watch(p.Ctx, p.ConfigFile, func(cfg config.Config) {
		logging.Info(p.Ctx, "log level applied", slog.String("level", logging.SetLevel(cfg.App.LogLevel).String()))
	})
}
