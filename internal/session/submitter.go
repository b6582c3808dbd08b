package session

import (
	"context"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

type Outcome int

const (
	// OutcomeSkipped: blank description or no unit, nothing was attempted.
	OutcomeSkipped Outcome = iota
	OutcomePersisted
	// OutcomeQueued: the insert failed and the payload went to the local queue.
	OutcomeQueued
	// OutcomeDropped: both the insert and the local enqueue failed.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	}
	return "skipped"
}

type ReportInserter interface {
	CreateReport(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error)
}

type ReportQueue interface {
	Enqueue(ctx context.Context, r *model.Report) error
}

// Submitter moves a composed report either to the API or, when that fails,
// to the local queue. Never both.
type Submitter struct {
	remote  ReportInserter
	queue   ReportQueue
	timeout time.Duration
	now     func() time.Time
}

// NewSubmitter builds a Submitter. A zero timeout leaves the insert bounded
// only by the caller's context.
func NewSubmitter(remote ReportInserter, queue ReportQueue, timeout time.Duration) *Submitter {
	return &Submitter{
		remote:  remote,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
	}
}

// Submit composes the report for action on unitID and stores it. The
// returned report is the stored record when persisted and the composed
// payload otherwise; it is nil only when the call was skipped.
func (s *Submitter) Submit(ctx context.Context, unitID string, action report.Action, description string) (Outcome, *model.Report) {
	payload := report.Build(unitID, action, description, s.now())
	if payload == nil {
		return OutcomeSkipped, nil
	}
	return s.Resubmit(ctx, payload)
}

// Resubmit sends an already composed payload, keeping its raw message and
// client_ref. A failed insert queues the payload.
func (s *Submitter) Resubmit(ctx context.Context, payload *model.Report) (Outcome, *model.Report) {
	stored, err := s.Insert(ctx, payload)
	if err == nil {
		return OutcomePersisted, stored
	}

	logger.Error("insert failed, queueing locally", "unit_id", payload.UnitID, "client_ref", payload.ClientRef, "error", err)

	// the caller's ctx may be the reason the insert failed; the local write
	// must still happen
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), payload); err != nil {
		return OutcomeDropped, payload
	}
	return OutcomeQueued, payload
}

// Insert makes the single remote attempt for payload, bounded by the
// submit timeout when one is set.
func (s *Submitter) Insert(ctx context.Context, payload *model.Report) (*model.Report, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stored, err := s.remote.CreateReport(ctx, payload.CreateRequest())
	if err != nil {
		return nil, err
	}
	logger.Info("report stored", "id", stored.ID, "unit_id", stored.UnitID, "status", stored.Status)
	return stored, nil
}
