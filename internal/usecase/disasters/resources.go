package disasters

import (
	"context"
	"fmt"
	"strings"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

// NearbyInput optionally overrides the search center. Both or neither must be set.
type NearbyInput struct {
	Lat *float64
	Lon *float64
}

type ResourceInput struct {
	Name         string
	Type         string
	LocationName string
}

func resourcesKey(disasterID string, center disaster.Point) string {
	return fmt.Sprintf("disaster:%s:resources:%.6f:%.6f", disasterID, center.Lat, center.Lon)
}

// Resources lists the disaster's resources within disaster.ResourceRadiusMeters
// of the center, nearest first. The center defaults to the disaster's own point.
func (s *Service) Resources(ctx context.Context, id string, in NearbyInput) ([]disaster.NearbyResource, error) {
	d, err := s.disasters.GetDisaster(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "load disaster")
	}

	center, err := searchCenter(d, in)
	if err != nil {
		return nil, err
	}

	key := resourcesKey(id, center)
	cached, found, err := ports.GetJSON[[]disaster.NearbyResource](ctx, s.cache, key)
	if err != nil {
		return nil, errs.Wrap(err, "read cached resources")
	}
	if found && len(cached) > 0 {
		return cached, nil
	}

	items, err := s.resources.ListResourcesWithin(ctx, id, center, disaster.ResourceRadiusMeters)
	if err != nil {
		return nil, errs.Wrap(err, "list resources")
	}
	if len(items) == 0 {
		return nil, errs.Mark(errs.ErrNotFound, nil, "no resources found")
	}

	s.setCacheBestEffort(ctx, key, items)
	return items, nil
}

func searchCenter(d disaster.Disaster, in NearbyInput) (disaster.Point, error) {
	switch {
	case in.Lat == nil && in.Lon == nil:
		return d.Point(), nil
	case in.Lat == nil || in.Lon == nil:
		return disaster.Point{}, errs.Mark(errs.ErrValidation, nil, "lat and lon must be given together")
	}

	p := disaster.Point{Lat: *in.Lat, Lon: *in.Lon}
	if p.Validate() != nil {
		return disaster.Point{}, errs.Mark(errs.ErrValidation, nil, "lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return p, nil
}

// CreateResource geocodes and stores a resource for an existing disaster.
func (s *Service) CreateResource(ctx context.Context, disasterID string, in ResourceInput) (disaster.Resource, error) {
	if strings.TrimSpace(in.Name) == "" {
		return disaster.Resource{}, errs.Mark(errs.ErrValidation, nil, "name is required")
	}
	if strings.TrimSpace(in.LocationName) == "" {
		return disaster.Resource{}, errs.Mark(errs.ErrValidation, nil, "location_name is required")
	}
	if _, err := s.disasters.GetDisaster(ctx, disasterID); err != nil {
		return disaster.Resource{}, errs.Wrap(err, "load disaster")
	}

	loc, err := s.enricher.ExtractLocation(ctx, in.LocationName, in.Name, "")
	if err != nil {
		return disaster.Resource{}, errs.Wrap(err, "extract location")
	}

	created, err := s.resources.CreateResource(ctx, disaster.Resource{
		ID:           s.newID(),
		DisasterID:   disasterID,
		Name:         strings.TrimSpace(in.Name),
		Type:         strings.ToLower(strings.TrimSpace(in.Type)),
		Location:     loc.Geocode,
		LocationName: loc.Name,
		Lat:          loc.Lat,
		Lon:          loc.Lon,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return disaster.Resource{}, errs.Wrap(err, "create resource")
	}

	s.publish(ctx, ports.EventResourcesUpdated, disasterID, created)
	return created, nil
}
