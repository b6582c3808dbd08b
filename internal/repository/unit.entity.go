package repository

import "github.com/nimasrn/kamoa-supervision/internal/model"

type UnitEntity struct {
	UnitID string  `db:"unit_id" gorm:"primaryKey;column:unit_id"`
	Label  *string `db:"label"   gorm:"column:label"`
}

func (UnitEntity) TableName() string {
	return "units"
}

func toUnitModel(e *UnitEntity) *model.Unit {
	if e == nil {
		return nil
	}
	return &model.Unit{
		UnitID: e.UnitID,
		Label:  e.Label,
	}
}

func toUnitModels(entities []*UnitEntity) []*model.Unit {
	if entities == nil {
		return nil
	}
	models := make([]*model.Unit, len(entities))
	for i, e := range entities {
		models[i] = toUnitModel(e)
	}
	return models
}
