package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/internal/repository"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/prom"
)

// ErrInvalidInput wraps every validation failure so handlers can map it to 400.
var ErrInvalidInput = errors.New("invalid input")

type ReportRepository interface {
	Create(ctx context.Context, r *model.Report) (*model.Report, error)
	FindByClientRef(ctx context.Context, ref string) (*model.Report, error)
	List(ctx context.Context, f model.ReportFilter) ([]*model.Report, error)
}

type ReportPublisher interface {
	Publish(ctx context.Context, r *model.Report) error
}

type ReportService struct {
	repo      ReportRepository
	publisher ReportPublisher
	now       func() time.Time
}

func NewReportService(repo ReportRepository, publisher ReportPublisher) *ReportService {
	return &ReportService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create stores a report and announces it on the change feed. A client_ref
// that is already stored returns the stored report and announces nothing.
// A failed announcement is logged; the report stays stored.
func (s *ReportService) Create(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	p.UnitID = strings.TrimSpace(p.UnitID)
	p.Description = strings.TrimSpace(p.Description)
	p.ClientRef = strings.TrimSpace(p.ClientRef)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	if p.RawMessage == "" {
		p.RawMessage = report.Compose(p.UnitID, p.Status, p.Emoji, p.Description, now)
	}

	r := &model.Report{
		UnitID:      p.UnitID,
		Status:      p.Status,
		Emoji:       p.Emoji,
		Description: p.Description,
		RawMessage:  p.RawMessage,
		ClientRef:   p.ClientRef,
	}

	created, err := s.repo.Create(ctx, r)
	if errors.Is(err, repository.ErrDuplicateClientRef) {
		existing, ferr := s.repo.FindByClientRef(ctx, p.ClientRef)
		if ferr != nil {
			return nil, fmt.Errorf("find report %s: %w", p.ClientRef, ferr)
		}
		prom.ReportDeduplicated()
		logger.Info("duplicate report submission", "client_ref", p.ClientRef, "id", existing.ID)
		return existing, nil
	}
	if errors.Is(err, repository.ErrUnknownUnit) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	prom.ReportCreated(string(created.Status), s.now().Sub(now).Seconds())

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, created); err != nil {
			logger.Error("failed to publish report", "id", created.ID, "error", err)
		}
	}

	return created, nil
}

func (s *ReportService) List(ctx context.Context, f model.ReportFilter) ([]*model.Report, error) {
	f.Limit = f.NormalizedLimit()
	return s.repo.List(ctx, f)
}

// ListAll is the administrative listing, capped at the maximum page size.
func (s *ReportService) ListAll(ctx context.Context) ([]*model.Report, error) {
	return s.repo.List(ctx, model.ReportFilter{Limit: model.MaxReportLimit})
}
