package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/persistence/model"
	"disasterwatch/internal/ports"
)

type DisasterRepository struct {
	db *gorm.DB
}

var _ ports.DisasterRepository = (*DisasterRepository)(nil)

func NewDisasterRepository(db *gorm.DB) *DisasterRepository {
	return &DisasterRepository{db: db}
}

func (r *DisasterRepository) ListDisasters(ctx context.Context, q ports.DisasterQuery) ([]disaster.Disaster, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Disaster{})
	if tags := disaster.NormalizeTags(q.Tags); len(tags) > 0 {
		sub := db.Model(&model.DisasterTag{}).
			Select("disaster_id").
			Where("tag IN ?", tags)
		if q.Mode == disaster.TagMatchAll {
			sub = sub.Group("disaster_id").Having("count(distinct tag) = ?", len(tags))
		}
		query = query.Where("id IN (?)", sub)
	}

	query = query.Order("created_at desc").Order("id asc")
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []model.Disaster
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Mark(errs.ErrUpstream, err, "query disasters")
	}
	if len(rows) == 0 {
		return []disaster.Disaster{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	tags, err := loadTags(db, ids...)
	if err != nil {
		return nil, err
	}

	items := make([]disaster.Disaster, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapDisaster(row, tags[row.ID]))
	}
	return items, nil
}

func (r *DisasterRepository) GetDisaster(ctx context.Context, id string) (disaster.Disaster, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return disaster.Disaster{}, err
	}
	return getDisasterByID(db, id)
}

func (r *DisasterRepository) CreateDisaster(ctx context.Context, d disaster.Disaster) (disaster.Disaster, error) {
	if strings.TrimSpace(d.ID) == "" {
		return disaster.Disaster{}, errs.Mark(errs.ErrInvalidArgument, nil, "disaster id is required")
	}

	row := toDisasterRow(d)
	tags := disaster.NormalizeTags(d.Tags)
	err := inTx(ctx, r.db, func(db *gorm.DB) error {
		if err := db.Create(&row).Error; err != nil {
			return errs.Mark(errs.ErrUpstream, err, "insert disaster")
		}
		return insertTags(db, row.ID, tags)
	})
	if err != nil {
		return disaster.Disaster{}, err
	}
	return mapDisaster(row, tags), nil
}

func (r *DisasterRepository) UpdateDisaster(ctx context.Context, d disaster.Disaster) (disaster.Disaster, error) {
	row := toDisasterRow(d)
	tags := disaster.NormalizeTags(d.Tags)

	var updated disaster.Disaster
	err := inTx(ctx, r.db, func(db *gorm.DB) error {
		res := db.Model(&model.Disaster{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"title":         row.Title,
				"description":   row.Description,
				"location":      row.Location,
				"location_name": row.LocationName,
				"lat":           row.Lat,
				"lon":           row.Lon,
				"audit_trail":   row.AuditTrail,
				"updated_at":    row.UpdatedAt,
			})
		if res.Error != nil {
			return errs.Mark(errs.ErrUpstream, res.Error, "update disaster")
		}
		if res.RowsAffected == 0 {
			return errs.Mark(errs.ErrNotFound, nil, "disaster not found")
		}

		if err := db.Where("disaster_id = ?", row.ID).Delete(&model.DisasterTag{}).Error; err != nil {
			return errs.Mark(errs.ErrUpstream, err, "clear disaster tags")
		}
		if err := insertTags(db, row.ID, tags); err != nil {
			return err
		}

		got, err := getDisasterByID(db, row.ID)
		if err != nil {
			return err
		}
		updated = got
		return nil
	})
	if err != nil {
		return disaster.Disaster{}, err
	}
	return updated, nil
}

func (r *DisasterRepository) DeleteDisaster(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(db *gorm.DB) error {
		if err := db.Where("disaster_id = ?", id).Delete(&model.DisasterTag{}).Error; err != nil {
			return errs.Mark(errs.ErrUpstream, err, "delete disaster tags")
		}
		if err := db.Where("id = ?", id).Delete(&model.Disaster{}).Error; err != nil {
			return errs.Mark(errs.ErrUpstream, err, "delete disaster")
		}
		return nil
	})
}

func getDisasterByID(db *gorm.DB, id string) (disaster.Disaster, error) {
	var row model.Disaster
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return disaster.Disaster{}, errs.Mark(errs.ErrNotFound, nil, "disaster not found")
		}
		return disaster.Disaster{}, errs.Mark(errs.ErrUpstream, err, "query disaster")
	}

	tags, err := loadTags(db, id)
	if err != nil {
		return disaster.Disaster{}, err
	}
	return mapDisaster(row, tags[id]), nil
}

func loadTags(db *gorm.DB, ids ...string) (map[string][]string, error) {
	var rows []model.DisasterTag
	if err := db.
		Where("disaster_id IN ?", ids).
		Order("disaster_id asc").
		Order("position asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Mark(errs.ErrUpstream, err, "query disaster tags")
	}

	out := make(map[string][]string, len(ids))
	for _, row := range rows {
		out[row.DisasterID] = append(out[row.DisasterID], row.Tag)
	}
	return out, nil
}

func insertTags(db *gorm.DB, disasterID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	rows := make([]model.DisasterTag, 0, len(tags))
	for i, tag := range tags {
		rows = append(rows, model.DisasterTag{DisasterID: disasterID, Tag: tag, Position: i})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Mark(errs.ErrUpstream, err, "insert disaster tags")
	}
	return nil
}

func toDisasterRow(d disaster.Disaster) model.Disaster {
	trail := make([]model.AuditEntry, 0, len(d.AuditTrail))
	for _, e := range d.AuditTrail {
		trail = append(trail, model.AuditEntry{Action: e.Action, UserID: e.UserID, Timestamp: e.Timestamp})
	}

	return model.Disaster{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Location:     d.Location,
		LocationName: d.LocationName,
		Lat:          d.Lat,
		Lon:          d.Lon,
		OwnerID:      d.OwnerID,
		AuditTrail:   trail,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func mapDisaster(row model.Disaster, tags []string) disaster.Disaster {
	trail := make([]disaster.AuditEntry, 0, len(row.AuditTrail))
	for _, e := range row.AuditTrail {
		trail = append(trail, disaster.AuditEntry{Action: e.Action, UserID: e.UserID, Timestamp: e.Timestamp})
	}
	if tags == nil {
		tags = []string{}
	}

	return disaster.Disaster{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Tags:         tags,
		Location:     row.Location,
		LocationName: row.LocationName,
		Lat:          row.Lat,
		Lon:          row.Lon,
		OwnerID:      row.OwnerID,
		AuditTrail:   trail,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}
