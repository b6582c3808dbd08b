package repository

import (
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

type ReportEntity struct {
	ID          int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UnitID      string    `db:"unit_id"     gorm:"column:unit_id;not null;index"`
	Status      string    `db:"status"      gorm:"column:status;not null"`
	Emoji       *string   `db:"emoji"       gorm:"column:emoji"`
	Description string    `db:"description" gorm:"column:description;not null"`
	RawMessage  string    `db:"raw_message" gorm:"column:raw_message;not null;default:''"`
	ClientRef   *string   `db:"client_ref"  gorm:"column:client_ref;uniqueIndex:idx_reports_client_ref"`
	CreatedAt   time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime;index"`

	Unit *UnitEntity `gorm:"foreignKey:UnitID;references:UnitID;constraint:OnDelete:RESTRICT"`
}

func (ReportEntity) TableName() string {
	return "reports"
}

func toReportEntity(m *model.Report) *ReportEntity {
	if m == nil {
		return nil
	}
	return &ReportEntity{
		ID:          m.ID,
		UnitID:      m.UnitID,
		Status:      string(m.Status),
		Emoji:       nullable(m.Emoji),
		Description: m.Description,
		RawMessage:  m.RawMessage,
		ClientRef:   nullable(m.ClientRef),
		CreatedAt:   m.CreatedAt.Time,
	}
}

func toReportModel(e *ReportEntity) *model.Report {
	if e == nil {
		return nil
	}
	return &model.Report{
		ID:          e.ID,
		UnitID:      e.UnitID,
		Status:      model.ReportStatus(e.Status),
		Emoji:       deref(e.Emoji),
		Description: e.Description,
		RawMessage:  e.RawMessage,
		ClientRef:   deref(e.ClientRef),
		CreatedAt:   model.NewTime(e.CreatedAt.UTC()),
	}
}

func toReportModels(entities []*ReportEntity) []*model.Report {
	if entities == nil {
		return nil
	}
	models := make([]*model.Report, len(entities))
	for i, e := range entities {
		models[i] = toReportModel(e)
	}
	return models
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
