package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

type UnitRepository interface {
	List(ctx context.Context) ([]*model.Unit, error)
}

type FaultRepository interface {
	Create(ctx context.Context, f *model.Fault) (*model.Fault, error)
	List(ctx context.Context) ([]*model.Fault, error)
}

// CatalogService serves the reference data: units and the fault library.
type CatalogService struct {
	units  UnitRepository
	faults FaultRepository
}

func NewCatalogService(units UnitRepository, faults FaultRepository) *CatalogService {
	return &CatalogService{
		units:  units,
		faults: faults,
	}
}

func (s *CatalogService) Units(ctx context.Context) ([]*model.Unit, error) {
	return s.units.List(ctx)
}

func (s *CatalogService) Faults(ctx context.Context) ([]model.FaultGroup, error) {
	faults, err := s.faults.List(ctx)
	if err != nil {
		return nil, err
	}
	return model.GroupFaults(faults), nil
}

func (s *CatalogService) CreateFault(ctx context.Context, p model.FaultCreateRequest) (*model.Fault, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.faults.Create(ctx, &model.Fault{
		Category:    p.Category,
		Description: p.Description,
	})
}
