package repository

import (
	"context"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/pg"
)

type FaultRepository struct {
	*pg.DB
}

func NewFaultRepository(db *pg.DB) *FaultRepository {
	return &FaultRepository{
		db,
	}
}

func (r *FaultRepository) Create(ctx context.Context, f *model.Fault) (*model.Fault, error) {
	entity := toFaultEntity(f)
	entity.ID = 0

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toFaultModel(entity), nil
}

// List returns the whole library, newest first.
func (r *FaultRepository) List(ctx context.Context) ([]*model.Fault, error) {
	var entities []*FaultEntity
	if err := r.Read(ctx).Order("created_at DESC").Order("id DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toFaultModels(entities), nil
}
