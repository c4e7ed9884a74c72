package repository

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/persistence/model"
	"disasterwatch/internal/ports"
)

type ResourceRepository struct {
	db *gorm.DB
}

var _ ports.ResourceRepository = (*ResourceRepository)(nil)

func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) CreateResource(ctx context.Context, res disaster.Resource) (disaster.Resource, error) {
	if strings.TrimSpace(res.ID) == "" {
		return disaster.Resource{}, errs.Mark(errs.ErrInvalidArgument, nil, "resource id is required")
	}

	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return disaster.Resource{}, err
	}

	row := model.Resource{
		ID:           res.ID,
		DisasterID:   res.DisasterID,
		Name:         res.Name,
		Type:         res.Type,
		Location:     res.Location,
		LocationName: res.LocationName,
		Lat:          res.Lat,
		Lon:          res.Lon,
		CreatedAt:    res.CreatedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return disaster.Resource{}, errs.Mark(errs.ErrUpstream, err, "insert resource")
	}
	return mapResource(row), nil
}

// ListResourcesWithin narrows candidates with a bounding box in SQL, then
// applies the exact great-circle radius.
func (r *ResourceRepository) ListResourcesWithin(ctx context.Context, disasterID string, center disaster.Point, radiusMeters float64) ([]disaster.NearbyResource, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	box := disaster.BoundingBoxAround(center, radiusMeters)
	lonSQL, lonArgs := lonRangesClause(box.LonRanges())
	var rows []model.Resource
	if err := db.
		Where("disaster_id = ?", disasterID).
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where(lonSQL, lonArgs...).
		Find(&rows).Error; err != nil {
		return nil, errs.Mark(errs.ErrUpstream, err, "query resources")
	}

	items := make([]disaster.NearbyResource, 0, len(rows))
	for _, row := range rows {
		res := mapResource(row)
		d := disaster.DistanceMeters(center, disaster.Point{Lat: res.Lat, Lon: res.Lon})
		if d > radiusMeters {
			continue
		}
		items = append(items, disaster.NearbyResource{Resource: res, DistanceMeters: d})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DistanceMeters != items[j].DistanceMeters {
			return items[i].DistanceMeters < items[j].DistanceMeters
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// lonRangesClause ORs one BETWEEN per range, parenthesized as a whole.
func lonRangesClause(ranges []disaster.LonRange) (string, []any) {
	parts := make([]string, 0, len(ranges))
	args := make([]any, 0, 2*len(ranges))
	for _, r := range ranges {
		parts = append(parts, "lon BETWEEN ? AND ?")
		args = append(args, r.Min, r.Max)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func mapResource(row model.Resource) disaster.Resource {
	return disaster.Resource{
		ID:           row.ID,
		DisasterID:   row.DisasterID,
		Name:         row.Name,
		Type:         row.Type,
		Location:     row.Location,
		LocationName: row.LocationName,
		Lat:          row.Lat,
		Lon:          row.Lon,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}
