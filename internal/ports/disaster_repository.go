package ports

import (
	"context"

	"disasterwatch/internal/domain/disaster"
)

type DisasterQuery struct {
	Tags   []string
	Mode   disaster.TagMatchMode
	Offset int
	Limit  int
}

type DisasterReadRepository interface {
	// ListDisasters returns disasters newest first.
	ListDisasters(ctx context.Context, query DisasterQuery) ([]disaster.Disaster, error)
	// GetDisaster fails with errs.ErrNotFound when id is unknown.
	GetDisaster(ctx context.Context, id string) (disaster.Disaster, error)
}

type DisasterRepository interface {
	DisasterReadRepository
	CreateDisaster(ctx context.Context, d disaster.Disaster) (disaster.Disaster, error)
	// UpdateDisaster replaces the mutable fields, the tag set and the audit trail.
	UpdateDisaster(ctx context.Context, d disaster.Disaster) (disaster.Disaster, error)
	// DeleteDisaster is idempotent.
	DeleteDisaster(ctx context.Context, id string) error
}

type ResourceRepository interface {
	CreateResource(ctx context.Context, r disaster.Resource) (disaster.Resource, error)
	// ListResourcesWithin returns the disaster's resources within radius of center,
	// nearest first.
	ListResourcesWithin(ctx context.Context, disasterID string, center disaster.Point, radiusMeters float64) ([]disaster.NearbyResource, error)
}
