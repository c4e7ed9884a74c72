package disasters

import (
	"context"
	"log/slog"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

// SocialMedia returns relevant posts for a disaster, served from cache when
// possible. No posts at all, or none the model keeps, is ErrNotFound.
func (s *Service) SocialMedia(ctx context.Context, id string) ([]disaster.Post, error) {
	key := socialMediaKey(id)
	ctx = logging.WithAttrs(ctx, slog.String("disaster_id", id))

	cached, found, err := ports.GetJSON[[]disaster.Post](ctx, s.cache, key)
	if err != nil {
		return nil, errs.Wrap(err, "read cached posts")
	}
	if found && len(cached) > 0 {
		logging.Debug(ctx, "social media cache hit")
		return cached, nil
	}

	d, err := s.disasters.GetDisaster(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "load disaster")
	}

	query, err := s.enricher.BuildQuery(ctx, d.Title, d.Description, d.LocationName, d.Tags)
	if err != nil {
		return nil, errs.Wrap(err, "build social query")
	}

	raw, err := s.feed.FetchPosts(ctx, query)
	if err != nil {
		return nil, errs.Wrap(err, "fetch posts")
	}
	if len(raw) == 0 {
		return nil, errs.Mark(errs.ErrNotFound, nil, "no social media posts found")
	}

	posts, err := s.enricher.FilterPosts(ctx, d.Title, d.Description, d.LocationName, d.Tags, raw)
	if err != nil {
		return nil, errs.Wrap(err, "filter posts")
	}
	if len(posts) == 0 {
		return nil, errs.Mark(errs.ErrNotFound, nil, "no relevant social media posts found")
	}

	logging.Info(ctx, "social media refreshed", slog.String("query", query), slog.Int("raw", len(raw)), slog.Int("kept", len(posts)))
	s.setCacheBestEffort(ctx, key, posts)
	s.publish(ctx, ports.EventSocialMediaUpdated, id, posts)
	return posts, nil
}
