package repository

import (
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

type FaultEntity struct {
	ID          int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Category    string    `db:"category"    gorm:"column:category;not null;default:Safety"`
	Description string    `db:"description" gorm:"column:description;not null"`
	CreatedAt   time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime;index"`
}

func (FaultEntity) TableName() string {
	return "faults_library"
}

func toFaultEntity(m *model.Fault) *FaultEntity {
	if m == nil {
		return nil
	}
	return &FaultEntity{
		ID:          m.ID,
		Category:    string(m.Category),
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func toFaultModel(e *FaultEntity) *model.Fault {
	if e == nil {
		return nil
	}
	return &model.Fault{
		ID:          e.ID,
		Category:    model.FaultCategory(e.Category),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func toFaultModels(entities []*FaultEntity) []*model.Fault {
	if entities == nil {
		return nil
	}
	models := make([]*model.Fault, len(entities))
	for i, e := range entities {
		models[i] = toFaultModel(e)
	}
	return models
}
