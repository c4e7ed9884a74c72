package disasters

import (
	"context"
	"strings"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

// RecordInput is the writable part of a disaster.
type RecordInput struct {
	Title        string
	Description  string
	Tags         []string
	LocationName string
	UserID       *string
}

func (in RecordInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errs.Mark(errs.ErrValidation, nil, "title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errs.Mark(errs.ErrValidation, nil, "description is required")
	}
	return nil
}

type ListInput struct {
	Tags    []string
	Mode    string
	Page    int
	PerPage int
}

type ListResult struct {
	Disasters []disaster.Disaster `json:"disasters"`
	PageInfo  disaster.PageInfo   `json:"page_info"`
}

func (s *Service) List(ctx context.Context, in ListInput) (ListResult, error) {
	mode, err := disaster.ParseTagMatchMode(in.Mode)
	if err != nil {
		return ListResult{}, err
	}
	page := disaster.NewPage(in.Page, in.PerPage)
	offset, ok := page.Offset()
	if !ok {
		items, info := disaster.Window([]disaster.Disaster{}, page)
		return ListResult{Disasters: items, PageInfo: info}, nil
	}

	rows, err := s.disasters.ListDisasters(ctx, ports.DisasterQuery{
		Tags:   disaster.NormalizeTags(in.Tags),
		Mode:   mode,
		Offset: offset,
		Limit:  page.PerPage + 1,
	})
	if err != nil {
		return ListResult{}, errs.Wrap(err, "list disasters")
	}

	items, info := disaster.Window(rows, page)
	return ListResult{Disasters: items, PageInfo: info}, nil
}

func (s *Service) Get(ctx context.Context, id string) (disaster.Disaster, error) {
	d, err := s.disasters.GetDisaster(ctx, id)
	if err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "get disaster")
	}
	return d, nil
}

// Create geocodes the report before anything is stored.
func (s *Service) Create(ctx context.Context, in RecordInput) (disaster.Disaster, error) {
	if err := in.validate(); err != nil {
		return disaster.Disaster{}, err
	}

	loc, err := s.enricher.ExtractLocation(ctx, in.Title, in.Description, in.LocationName)
	if err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "extract location")
	}

	now := s.now()
	d := disaster.Disaster{
		ID:           s.newID(),
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Tags:         disaster.NormalizeTags(in.Tags),
		Location:     loc.Geocode,
		LocationName: loc.Name,
		Lat:          loc.Lat,
		Lon:          loc.Lon,
		OwnerID:      in.UserID,
		AuditTrail:   disaster.AppendAudit(nil, disaster.ActionCreate, in.UserID, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.disasters.CreateDisaster(ctx, d)
	if err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "create disaster")
	}

	s.publish(ctx, ports.EventDisasterCreated, created.ID, created)
	return created, nil
}

// Update fails with ErrNotFound before any model call when id is unknown.
// The audit trail is re-read inside the write transaction and only appended to.
func (s *Service) Update(ctx context.Context, id string, in RecordInput) (disaster.Disaster, error) {
	if err := in.validate(); err != nil {
		return disaster.Disaster{}, err
	}
	if _, err := s.disasters.GetDisaster(ctx, id); err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "load disaster")
	}

	loc, err := s.enricher.ExtractLocation(ctx, in.Title, in.Description, in.LocationName)
	if err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "extract location")
	}

	var updated disaster.Disaster
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.disasters.GetDisaster(txCtx, id)
		if err != nil {
			return err
		}

		now := s.now()
		current.Title = strings.TrimSpace(in.Title)
		current.Description = strings.TrimSpace(in.Description)
		current.Tags = disaster.NormalizeTags(in.Tags)
		current.Location = loc.Geocode
		current.LocationName = loc.Name
		current.Lat = loc.Lat
		current.Lon = loc.Lon
		current.AuditTrail = disaster.AppendAudit(current.AuditTrail, disaster.ActionUpdate, in.UserID, now)
		current.UpdatedAt = now

		updated, err = s.disasters.UpdateDisaster(txCtx, current)
		return err
	})
	if err != nil {
		return disaster.Disaster{}, errs.Wrap(err, "update disaster")
	}

	s.clearCacheBestEffort(ctx, socialMediaKey(id))
	s.publish(ctx, ports.EventDisasterUpdated, id, updated)
	return updated, nil
}

// Delete is unconditional: deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.disasters.DeleteDisaster(ctx, id); err != nil {
		return errs.Wrap(err, "delete disaster")
	}

	s.clearCacheBestEffort(ctx, socialMediaKey(id))
	s.publish(ctx, ports.EventDisasterDeleted, id, nil)
	return nil
}
