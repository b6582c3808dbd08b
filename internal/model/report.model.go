package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportStatusStopped ReportStatus = "STOPPED"
	ReportStatusRunning ReportStatus = "RUNNING"
)

func (s ReportStatus) Valid() bool {
	return s == ReportStatusStopped || s == ReportStatusRunning
}

var (
	ErrUnitRequired        = errors.New("unit_id is required")
	ErrInvalidStatus       = errors.New("status must be STOPPED or RUNNING")
	ErrDescriptionRequired = errors.New("description is required")
	ErrInvalidClientRef    = errors.New("client_ref must be a UUID")
)

const (
	DefaultReportLimit = 200
	MaxReportLimit     = 1000
)

// Report is one status event. ID and CreatedAt are assigned by the store;
// a payload waiting in the local queue has no ID and a client-side CreatedAt.
type Report struct {
	ID          int64        `json:"id,omitempty"`
	UnitID      string       `json:"unit_id"`
	Status      ReportStatus `json:"status"`
	Emoji       string       `json:"emoji,omitempty"`
	Description string       `json:"description"`
	RawMessage  string       `json:"raw_message"`
	CreatedAt   Time         `json:"created_at"`
	ClientRef   string       `json:"client_ref,omitempty"`
}

func (r *Report) Persisted() bool {
	return r != nil && r.ID != 0
}

// CreateRequest strips the store-assigned fields.
func (r *Report) CreateRequest() ReportCreateRequest {
	return ReportCreateRequest{
		UnitID:      r.UnitID,
		Status:      r.Status,
		Emoji:       r.Emoji,
		Description: r.Description,
		RawMessage:  r.RawMessage,
		ClientRef:   r.ClientRef,
	}
}

type ReportCreateRequest struct {
	UnitID      string       `json:"unit_id"`
	Status      ReportStatus `json:"status"`
	Emoji       string       `json:"emoji,omitempty"`
	Description string       `json:"description"`
	RawMessage  string       `json:"raw_message,omitempty"`
	ClientRef   string       `json:"client_ref,omitempty"`
}

func (p ReportCreateRequest) Validate() error {
	if strings.TrimSpace(p.UnitID) == "" {
		return ErrUnitRequired
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrDescriptionRequired
	}
	if p.ClientRef != "" {
		if _, err := uuid.Parse(p.ClientRef); err != nil {
			return ErrInvalidClientRef
		}
	}
	return nil
}

// NewClientRef returns a fresh idempotency key for a composed payload.
func NewClientRef() string {
	return uuid.NewString()
}

// ReportFilter controls List queries. Results are always newest first.
type ReportFilter struct {
	UnitID *string
	Limit  int
}

// NormalizedLimit clamps Limit to (0, MaxReportLimit], defaulting to
// DefaultReportLimit.
func (f ReportFilter) NormalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultReportLimit
	case f.Limit > MaxReportLimit:
		return MaxReportLimit
	}
	return f.Limit
}
