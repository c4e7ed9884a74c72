package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/infrastructure/persistence/model"
	"disasterwatch/internal/infrastructure/persistence/uow"
	"disasterwatch/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "disasters.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newDisaster(id string, created time.Time, tags ...string) disaster.Disaster {
	return disaster.Disaster{
		ID:           id,
		Title:        "title " + id,
		Description:  "description " + id,
		Tags:         tags,
		Location:     "SRID=4326;POINT(77.5946 12.9716)",
		LocationName: "Bengaluru",
		Lat:          12.9716,
		Lon:          77.5946,
		AuditTrail:   disaster.AppendAudit(nil, disaster.ActionCreate, nil, created),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestCreateAndGetDisaster(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)

	if _, err := repo.CreateDisaster(ctx, newDisaster("d1", now, "Flood", "urgent", "flood")); err != nil {
		t.Fatalf("CreateDisaster() error = %v", err)
	}

	got, err := repo.GetDisaster(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDisaster() error = %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "flood" || got.Tags[1] != "urgent" {
		t.Fatalf("tags = %#v", got.Tags)
	}
	if len(got.AuditTrail) != 1 || got.AuditTrail[0].Action != disaster.ActionCreate {
		t.Fatalf("audit trail = %#v", got.AuditTrail)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %s", got.CreatedAt)
	}
}

func TestGetDisasterNotFound(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))

	_, err := repo.GetDisaster(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetDisaster() error = %v, want ErrNotFound", err)
	}
}

func TestListDisastersTagModes(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))
	ctx := context.Background()
	base := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)

	for i, d := range []disaster.Disaster{
		newDisaster("a", base, "flood"),
		newDisaster("b", base.Add(time.Minute), "flood", "urgent"),
		newDisaster("c", base.Add(2*time.Minute), "earthquake"),
	} {
		if _, err := repo.CreateDisaster(ctx, d); err != nil {
			t.Fatalf("CreateDisaster(%d) error = %v", i, err)
		}
	}

	anyRows, err := repo.ListDisasters(ctx, ports.DisasterQuery{Tags: []string{"flood", "urgent"}, Mode: disaster.TagMatchAny})
	if err != nil {
		t.Fatalf("ListDisasters(any) error = %v", err)
	}
	if len(anyRows) != 2 || anyRows[0].ID != "b" || anyRows[1].ID != "a" {
		t.Fatalf("ListDisasters(any) = %v", ids(anyRows))
	}

	allRows, err := repo.ListDisasters(ctx, ports.DisasterQuery{Tags: []string{"Flood", "URGENT"}, Mode: disaster.TagMatchAll})
	if err != nil {
		t.Fatalf("ListDisasters(all) error = %v", err)
	}
	if len(allRows) != 1 || allRows[0].ID != "b" {
		t.Fatalf("ListDisasters(all) = %v", ids(allRows))
	}

	none, err := repo.ListDisasters(ctx, ports.DisasterQuery{Tags: []string{"wildfire"}})
	if err != nil {
		t.Fatalf("ListDisasters(none) error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("ListDisasters(none) = %#v, want empty slice", none)
	}
}

func TestListDisastersOrderingAndWindow(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))
	ctx := context.Background()
	same := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"z", "m", "a"} {
		if _, err := repo.CreateDisaster(ctx, newDisaster(id, same)); err != nil {
			t.Fatalf("CreateDisaster(%s) error = %v", id, err)
		}
	}
	if _, err := repo.CreateDisaster(ctx, newDisaster("newest", same.Add(time.Hour))); err != nil {
		t.Fatalf("CreateDisaster(newest) error = %v", err)
	}

	rows, err := repo.ListDisasters(ctx, ports.DisasterQuery{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListDisasters() error = %v", err)
	}
	if got := ids(rows); len(got) != 2 || got[0] != "a" || got[1] != "m" {
		t.Fatalf("ListDisasters() = %v, want [a m]", got)
	}
}

func TestUpdateDisasterReplacesTags(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)

	created, err := repo.CreateDisaster(ctx, newDisaster("d1", now, "flood"))
	if err != nil {
		t.Fatalf("CreateDisaster() error = %v", err)
	}

	user := "netrunner"
	created.Title = "updated"
	created.Tags = []string{"earthquake"}
	created.AuditTrail = disaster.AppendAudit(created.AuditTrail, disaster.ActionUpdate, &user, now.Add(time.Minute))
	created.UpdatedAt = now.Add(time.Minute)

	updated, err := repo.UpdateDisaster(ctx, created)
	if err != nil {
		t.Fatalf("UpdateDisaster() error = %v", err)
	}
	if updated.Title != "updated" || len(updated.Tags) != 1 || updated.Tags[0] != "earthquake" {
		t.Fatalf("updated = %+v", updated)
	}
	if len(updated.AuditTrail) != 2 || *updated.AuditTrail[1].UserID != "netrunner" {
		t.Fatalf("audit trail = %#v", updated.AuditTrail)
	}

	flood, err := repo.ListDisasters(ctx, ports.DisasterQuery{Tags: []string{"flood"}})
	if err != nil {
		t.Fatalf("ListDisasters() error = %v", err)
	}
	if len(flood) != 0 {
		t.Fatalf("stale tag still matches: %v", ids(flood))
	}
}

func TestUpdateDisasterNotFound(t *testing.T) {
	repo := NewDisasterRepository(setupDB(t))

	_, err := repo.UpdateDisaster(context.Background(), newDisaster("ghost", time.Now()))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("UpdateDisaster() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteDisasterIsIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := NewDisasterRepository(db)
	ctx := context.Background()

	if _, err := repo.CreateDisaster(ctx, newDisaster("d1", time.Now(), "flood")); err != nil {
		t.Fatalf("CreateDisaster() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.DeleteDisaster(ctx, "d1"); err != nil {
			t.Fatalf("DeleteDisaster() #%d error = %v", i, err)
		}
	}

	var tagCount int64
	if err := db.Model(&model.DisasterTag{}).Count(&tagCount).Error; err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if tagCount != 0 {
		t.Fatalf("tag rows left = %d", tagCount)
	}
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	db := setupDB(t)
	repo := NewDisasterRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := uow.NewUnitOfWork(db).WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.CreateDisaster(txCtx, newDisaster("d1", time.Now(), "flood")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := repo.GetDisaster(ctx, "d1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetDisaster() after rollback error = %v, want ErrNotFound", err)
	}
}

func ids(rows []disaster.Disaster) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
