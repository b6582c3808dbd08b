package repository

import (
	"context"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/pg"
)

type UnitRepository struct {
	*pg.DB
}

func NewUnitRepository(db *pg.DB) *UnitRepository {
	return &UnitRepository{
		db,
	}
}

// List returns every unit ordered by unit_id.
func (r *UnitRepository) List(ctx context.Context) ([]*model.Unit, error) {
	var entities []*UnitEntity
	if err := r.Read(ctx).Order("unit_id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toUnitModels(entities), nil
}
