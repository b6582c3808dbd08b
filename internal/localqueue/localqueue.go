// Package localqueue holds report payloads that could not be stored remotely.
// The whole queue lives in one local-store slot as a JSON array; the version
// suffix of the key changes whenever the payload schema does.
package localqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/localstore"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

const StorageKey = "kamoa_local_queue_v1"

// ErrCorrupt means the slot holds text that is not a payload array. The text
// is left in place for manual recovery and nothing is written over it.
var ErrCorrupt = errors.New("local queue content is corrupt")

type Queue struct {
	store localstore.Store
	key   string
	mu    sync.Mutex
}

func New(store localstore.Store) *Queue {
	return &Queue{
		store: store,
		key:   StorageKey,
	}
}

// Enqueue appends r to the persisted sequence. It never panics; a failure
// is logged and returned, and the payload is then lost.
func (q *Queue) Enqueue(ctx context.Context, r *model.Report) error {
	if r == nil {
		return nil
	}
	err := q.update(ctx, func(items []*model.Report) ([]*model.Report, error) {
		return append(items, r), nil
	})
	if err != nil {
		logger.Error("local queue write failed, payload dropped",
			"key", q.key, "unit_id", r.UnitID, "client_ref", r.ClientRef, "error", err)
		return err
	}
	logger.Info("report queued locally", "unit_id", r.UnitID, "client_ref", r.ClientRef)
	return nil
}

// List returns the queued payloads in insertion order.
func (q *Queue) List(ctx context.Context) ([]*model.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, err
	}
	return decode(raw, ok)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	return len(items), err
}

// Remove deletes the first queued payload matching r and reports whether
// one was found. Payloads match on client_ref, or on raw message and
// creation time when they carry none.
func (q *Queue) Remove(ctx context.Context, r *model.Report) (bool, error) {
	if r == nil {
		return false, nil
	}
	found := false
	err := q.update(ctx, func(items []*model.Report) ([]*model.Report, error) {
		for i, it := range items {
			if samePayload(it, r) {
				found = true
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return items, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func samePayload(a, b *model.Report) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ClientRef != "" || b.ClientRef != "" {
		return a.ClientRef == b.ClientRef
	}
	return a.RawMessage == b.RawMessage && a.CreatedAt.Equal(b.CreatedAt.Time)
}

// update is the only writer of the slot. The mutex serializes this process;
// a store that implements localstore.Updater also guards against other
// processes sharing the storage.
func (q *Queue) update(ctx context.Context, fn func([]*model.Report) ([]*model.Report, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	apply := func(current string, ok bool) (string, error) {
		items, err := decode(current, ok)
		if err != nil {
			return "", err
		}
		next, err := fn(items)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encode local queue: %w", err)
		}
		return string(b), nil
	}

	if u, ok := q.store.(localstore.Updater); ok {
		return u.Update(ctx, q.key, apply)
	}

	current, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return err
	}
	next, err := apply(current, ok)
	if err != nil {
		return err
	}
	return q.store.Set(ctx, q.key, next)
}

func decode(raw string, ok bool) ([]*model.Report, error) {
	if !ok || strings.TrimSpace(raw) == "" {
		return []*model.Report{}, nil
	}
	var items []*model.Report
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if items == nil {
		// literal null
		items = []*model.Report{}
	}
	return items, nil
}
