package localstore

import (
	"context"
	"errors"

	"github.com/nimasrn/kamoa-supervision/pkg/redis"
)

const maxUpdateAttempts = 5

// RedisStore keeps local state in redis, for consoles on a shared kiosk
// where several processes must see one queue.
type RedisStore struct {
	adapter redis.RedisAdapter
}

func OpenRedis(adapter redis.RedisAdapter) *RedisStore {
	return &RedisStore{adapter: adapter}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	b, err := s.adapter.Get(ctx, key)
	if errors.Is(err, redis.NilError) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.adapter.Set(ctx, key, []byte(value), 0)
}

// Update retries on optimistic-lock conflicts a bounded number of times.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.adapter.Update(ctx, key, func(current []byte) ([]byte, error) {
			next, err := fn(string(current), current != nil)
			if err != nil {
				return nil, err
			}
			return []byte(next), nil
		})
		if !errors.Is(err, redis.ErrTxConflict) {
			return err
		}
	}
	return err
}

func (s *RedisStore) Close() error {
	return nil
}
