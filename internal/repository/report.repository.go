package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a report does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrDuplicateClientRef is returned by Create when a report with the same
	// client_ref is already stored. Nothing is written.
	ErrDuplicateClientRef = errors.New("report with this client_ref already exists")
	// ErrUnknownUnit is returned by Create when unit_id names no unit.
	ErrUnknownUnit = errors.New("unit does not exist")
)

type ReportRepository struct {
	*pg.DB
	now func() time.Time
}

func NewReportRepository(db *pg.DB) *ReportRepository {
	return &ReportRepository{
		DB:  db,
		now: time.Now,
	}
}

// Create inserts report. The store assigns id and created_at; whatever the caller
// put in those fields is ignored.
func (r *ReportRepository) Create(ctx context.Context, report *model.Report) (*model.Report, error) {
	entity := toReportEntity(report)
	entity.ID = 0
	entity.CreatedAt = r.now().UTC()

	q := r.Write(ctx)
	if entity.ClientRef != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_ref"}},
			DoNothing: true,
		})
	}

	res := q.Omit("Unit").Create(entity)
	if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, entity.UnitID)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicateClientRef
	}

	return toReportModel(entity), nil
}

// FindByClientRef reads from the primary: it follows a duplicate insert and
// must see the row the replica may not have yet.
func (r *ReportRepository) FindByClientRef(ctx context.Context, ref string) (*model.Report, error) {
	var entity ReportEntity
	err := r.Write(ctx).Where("client_ref = ?", ref).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toReportModel(&entity), nil
}

// List returns reports newest first.
func (r *ReportRepository) List(ctx context.Context, f model.ReportFilter) ([]*model.Report, error) {
	q := r.Read(ctx).Model(&ReportEntity{})
	if f.UnitID != nil && *f.UnitID != "" {
		q = q.Where("unit_id = ?", *f.UnitID)
	}

	var entities []*ReportEntity
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(f.NormalizedLimit()).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toReportModels(entities), nil
}
