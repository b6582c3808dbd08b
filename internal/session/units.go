package session

import (
	"context"
	"encoding/json"

	"github.com/nimasrn/kamoa-supervision/internal/localstore"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

// UnitsKey is the local-store slot holding the last unit list the API
// returned.
const UnitsKey = "kamoa_units_v1"

// UnitCache is an API whose unit list survives an outage. Each successful
// Units call is saved locally; a failed one is answered from the saved copy.
type UnitCache struct {
	API
	store localstore.Store
}

func CacheUnits(api API, store localstore.Store) *UnitCache {
	return &UnitCache{API: api, store: store}
}

func (c *UnitCache) Units(ctx context.Context) ([]*model.Unit, error) {
	units, err := c.API.Units(ctx)
	if err == nil {
		c.save(ctx, units)
		return units, nil
	}

	saved, ok := c.load(ctx)
	if !ok {
		return nil, err
	}
	logger.Warn("api unreachable, using saved unit list", "units", len(saved), "error", err)
	return saved, nil
}

func (c *UnitCache) save(ctx context.Context, units []*model.Unit) {
	b, err := json.Marshal(units)
	if err != nil {
		logger.Warn("failed to encode unit list", "error", err)
		return
	}
	if err := c.store.Set(context.WithoutCancel(ctx), UnitsKey, string(b)); err != nil {
		logger.Warn("failed to save unit list", "error", err)
	}
}

func (c *UnitCache) load(ctx context.Context) ([]*model.Unit, bool) {
	raw, ok, err := c.store.Get(context.WithoutCancel(ctx), UnitsKey)
	if err != nil {
		logger.Warn("failed to read saved unit list", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var units []*model.Unit
	if err := json.Unmarshal([]byte(raw), &units); err != nil {
		logger.Warn("saved unit list is corrupt", "error", err)
		return nil, false
	}
	return units, len(units) > 0
}
