// Package httpapi is the HTTP surface of the service.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/usecase/disasters"
)

// DisasterService is what the handlers need from the disasters usecase.
type DisasterService interface {
	List(ctx context.Context, in disasters.ListInput) (disasters.ListResult, error)
	Get(ctx context.Context, id string) (disaster.Disaster, error)
	Create(ctx context.Context, in disasters.RecordInput) (disaster.Disaster, error)
	Update(ctx context.Context, id string, in disasters.RecordInput) (disaster.Disaster, error)
	Delete(ctx context.Context, id string) error
	SocialMedia(ctx context.Context, id string) ([]disaster.Post, error)
	Resources(ctx context.Context, id string, in disasters.NearbyInput) ([]disaster.NearbyResource, error)
	CreateResource(ctx context.Context, disasterID string, in disasters.ResourceInput) (disaster.Resource, error)
}

var _ DisasterService = (*disasters.Service)(nil)

type Deps struct {
	Config  config.HTTPConfig
	Service DisasterService
	Stream  http.Handler
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

type API struct {
	svc     DisasterService
	clock   clockwork.Clock
	started time.Time
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(d Deps) http.Handler {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &API{svc: d.Service, clock: clock, started: clock.Now()}

	r := chi.NewRouter()
	if d.Config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(middleware.Recoverer)
	r.Use(Instrument(d.Metrics))
	r.Use(SecurityHeaders)
	r.Use(CORS(d.Config.AllowedOrigins))
	r.Use(RateLimit(d.Config.RateLimitPerSecond, d.Config.RateLimitBurst))
	r.Use(MaxBodyBytes(d.Config.MaxBodyBytes))

	r.Get("/health", a.health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	if d.Stream != nil {
		r.Method(http.MethodGet, "/ws", d.Stream)
	}

	r.Route("/api/disasters", func(r chi.Router) {
		r.Get("/", a.listDisasters)
		r.Post("/", a.createDisaster)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getDisaster)
			r.Put("/", a.updateDisaster)
			r.Delete("/", a.deleteDisaster)
			r.Get("/social-media", a.socialMedia)
			r.Get("/resources", a.listResources)
			r.Post("/resources", a.createResource)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", RequestID: middleware.GetReqID(r.Context())})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", RequestID: middleware.GetReqID(r.Context())})
	})

	return r
}

// NewServer wraps handler with the configured timeouts.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
