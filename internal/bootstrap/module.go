package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/bootstrap/database"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/detach"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/bluesky"
	cacheinfra "disasterwatch/internal/infrastructure/cache"
	"disasterwatch/internal/infrastructure/events"
	"disasterwatch/internal/infrastructure/llm"
	"disasterwatch/internal/infrastructure/persistence/repository"
	"disasterwatch/internal/infrastructure/persistence/uow"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/ports"
	"disasterwatch/internal/usecase/disasters"
	"disasterwatch/internal/usecase/enrichment"
)

// Module provides configuration and the database. Everything else is built
// on demand by the commands that need it.
var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
)

// DomainModule wires the disaster service and its collaborators.
var DomainModule = fx.Options(
	fx.Provide(observability.NewMetrics),
	fx.Provide(provideBackground),
	fx.Provide(
		fx.Annotate(
			provideCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewDisasterRepository,
			fx.As(new(ports.DisasterRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewResourceRepository,
			fx.As(new(ports.ResourceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideLanguageModel,
			fx.As(new(ports.LanguageModel)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideSocialFeed,
			fx.As(new(ports.SocialFeed)),
		),
	),
	fx.Provide(
		fx.Annotate(
			enrichment.NewService,
			fx.As(new(disasters.Enricher)),
		),
	),
	fx.Provide(provideHub),
	fx.Provide(provideEventPublisher),
	fx.Provide(provideDisasterService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	cfg, err := config.Load(ctx, p.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	logging.SetLevel(cfg.App.LogLevel)
	return cfg, nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

type appParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	HTTP   *HTTPServer `optional:"true"`
}

func provideApp(p appParams) *App {
	return &App{
		Config: p.Config,
		DB:     p.DB,
		HTTP:   p.HTTP,
	}
}

// provideBackground waits for detached work before the database closes.
func provideBackground(lc fx.Lifecycle, ctx context.Context) *detach.Group {
	g := detach.NewGroup()
	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			if err := g.WaitContext(stopCtx); err != nil {
				logging.Warn(ctx, "background tasks still running at shutdown", slog.Any("err", errs.Loggable(err)))
			}
			return nil
		},
	})
	return g
}

func provideCache(db *gorm.DB, cfg config.Config, metrics *observability.Metrics, background *detach.Group) *cacheinfra.StoreCache {
	return cacheinfra.NewStoreCache(db,
		cacheinfra.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cacheinfra.WithMetrics(metrics),
		cacheinfra.WithBackground(background),
	)
}

func provideLanguageModel(cfg config.Config, metrics *observability.Metrics) *llm.Client {
	return llm.NewClient(cfg.LLM, metrics)
}

func provideSocialFeed(cfg config.Config, cache ports.Cache, metrics *observability.Metrics) *bluesky.Client {
	return bluesky.NewClient(cfg.Bluesky, cache, metrics)
}

func provideHub(lc fx.Lifecycle, cfg config.Config, metrics *observability.Metrics) *events.Hub {
	hub := events.NewHub(cfg.HTTP.AllowedOrigins, metrics)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

// provideEventPublisher always feeds the websocket hub and adds NATS when a
// server URL is configured.
func provideEventPublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config, hub *events.Hub, metrics *observability.Metrics) (ports.EventPublisher, error) {
	sinks := []ports.EventPublisher{hub}

	if cfg.Events.NATSURL != "" {
		conn, err := events.ConnectNATS(ctx, cfg.Events.NATSURL, cfg.App.Name)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return conn.Drain()
			},
		})
		sinks = append(sinks, events.NewNATSPublisher(conn, cfg.Events.NATSSubject))
	}

	return events.NewFanout(metrics, sinks...), nil
}

type disasterParams struct {
	fx.In

	Disasters  ports.DisasterRepository
	Resources  ports.ResourceRepository
	UoW        ports.UnitOfWork
	Cache      ports.Cache
	Enricher   disasters.Enricher
	Feed       ports.SocialFeed
	Events     ports.EventPublisher
	Background *detach.Group
}

func provideDisasterService(p disasterParams) *disasters.Service {
	return disasters.NewService(disasters.Deps{
		Disasters:  p.Disasters,
		Resources:  p.Resources,
		UoW:        p.UoW,
		Cache:      p.Cache,
		Enricher:   p.Enricher,
		Feed:       p.Feed,
		Events:     p.Events,
		Background: p.Background,
	})
}
