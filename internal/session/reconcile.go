package session

import (
	"context"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

type PendingQueue interface {
	List(ctx context.Context) ([]*model.Report, error)
	Remove(ctx context.Context, r *model.Report) (bool, error)
}

type FlushResult struct {
	Persisted int
	Remaining int
}

// Flush resubmits the queued payloads in order. A payload leaves the queue
// only once the API has stored it, so an interrupted flush loses nothing;
// a payload stored but not yet removed is sent again next time and the
// server answers with the record it already has. Operators run this by
// hand; nothing calls it on a timer.
func Flush(ctx context.Context, q PendingQueue, s *Submitter) (FlushResult, error) {
	var res FlushResult

	items, err := q.List(ctx)
	if err != nil {
		return res, err
	}

	for i, p := range items {
		if ctx.Err() != nil {
			res.Remaining += len(items) - i
			break
		}
		stored, err := s.Insert(ctx, p)
		if err != nil {
			logger.Warn("queued report still not stored", "client_ref", p.ClientRef, "error", err)
			res.Remaining++
			continue
		}
		if _, err := q.Remove(context.WithoutCancel(ctx), p); err != nil {
			logger.Error("stored report left in local queue", "id", stored.ID, "client_ref", p.ClientRef, "error", err)
		}
		res.Persisted++
	}

	logger.Info("local queue flushed", "persisted", res.Persisted, "remaining", res.Remaining)
	return res, ctx.Err()
}
