// Package disasters orchestrates disaster records, their enrichment and the
// derived social media and resource views.
package disasters

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/detach"
	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

// Enricher is the model-backed enrichment the service depends on.
type Enricher interface {
	ExtractLocation(ctx context.Context, title, description, hint string) (disaster.GeoLocation, error)
	BuildQuery(ctx context.Context, title, description, locationName string, tags []string) (string, error)
	FilterPosts(ctx context.Context, title, description, locationName string, tags []string, raw []json.RawMessage) ([]disaster.Post, error)
}

type Deps struct {
	Disasters  ports.DisasterRepository
	Resources  ports.ResourceRepository
	UoW        ports.UnitOfWork
	Cache      ports.Cache
	Enricher   Enricher
	Feed       ports.SocialFeed
	Events     ports.EventPublisher
	Background *detach.Group
	Clock      clockwork.Clock
	NewID      func() string
}

type Service struct {
	disasters  ports.DisasterRepository
	resources  ports.ResourceRepository
	uow        ports.UnitOfWork
	cache      ports.Cache
	enricher   Enricher
	feed       ports.SocialFeed
	events     ports.EventPublisher
	background *detach.Group
	clock      clockwork.Clock
	newID      func() string
}

func NewService(d Deps) *Service {
	s := &Service{
		disasters:  d.Disasters,
		resources:  d.Resources,
		uow:        d.UoW,
		cache:      d.Cache,
		enricher:   d.Enricher,
		feed:       d.Feed,
		events:     d.Events,
		background: d.Background,
		clock:      d.Clock,
		newID:      d.NewID,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.background == nil {
		s.background = detach.NewGroup()
	}
	return s
}

func socialMediaKey(disasterID string) string {
	return "disaster:" + disasterID + ":social-media"
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// clearCacheBestEffort drops a derived entry; failure only leaves it to expire.
func (s *Service) clearCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logging.Warn(ctx, "cache clear failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

// setCacheBestEffort stores value in the background.
func (s *Service) setCacheBestEffort(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	s.background.Go(ctx, "cache.set", func(ctx context.Context) error {
		return ports.SetJSON(ctx, s.cache, key, value, 0)
	})
}

func (s *Service) publish(ctx context.Context, eventType string, disasterID string, payload any) {
	if s.events == nil {
		return
	}
	event := ports.Event{
		Type:       eventType,
		DisasterID: disasterID,
		Payload:    payload,
		OccurredAt: s.now(),
	}
	s.background.Go(ctx, "events.publish", func(ctx context.Context) error {
		return s.events.Publish(ctx, event)
	})
}
