package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

// ErrTxConflict is returned by Update when the watched key changed between
// the read and the write.
var ErrTxConflict = goredis.TxFailedErr

type Options = goredis.UniversalOptions

// StreamMessage represents a message in Redis Stream
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

type RedisAdapter interface {
	// Basic operations
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exist(ctx context.Context, key string) (int64, error)
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	Ping(ctx context.Context) error
	Client() goredis.UniversalClient

	// Stream operations
	XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error)
	XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(ctx context.Context, key, group string, ids ...string) error
	XGroupCreateMkStream(ctx context.Context, key, group, start string) error
	XGroupDestroy(ctx context.Context, key, group string) error
	XLen(ctx context.Context, key string) (int64, error)
	XTrimApprox(ctx context.Context, key string, maxLen int64) error
}

type redisAdapter struct {
	prefix   string
	Conn     goredis.UniversalClient
	ConnName string
}

var redisLock = &sync.RWMutex{}
var redisInstance map[string]RedisAdapter

// NewRedisAdapter returns the adapter registered under connName, dialing and
// registering a new one on first use.
func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	redisLock.RLock()
	if adapter, ok := redisInstance[connName]; ok {
		redisLock.RUnlock()
		return adapter, nil
	}
	redisLock.RUnlock()

	c := goredis.NewUniversalClient(opts)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}

	adapter := &redisAdapter{
		Conn:     c,
		prefix:   keysPrefix,
		ConnName: connName,
	}

	redisLock.Lock()
	defer redisLock.Unlock()
	if redisInstance == nil {
		redisInstance = make(map[string]RedisAdapter)
	}
	if existing, ok := redisInstance[connName]; ok {
		_ = c.Close()
		return existing, nil
	}
	redisInstance[connName] = adapter

	return adapter, nil
}

func GetRedis(connName ...string) RedisAdapter {
	redisLock.RLock()
	defer redisLock.RUnlock()

	name := "default"
	if len(connName) > 0 && connName[0] != "" {
		name = connName[0]
	}

	if adapter, ok := redisInstance[name]; ok {
		return adapter
	}

	return redisInstance["default"]
}

func (r *redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Conn.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisAdapter) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := r.Conn.SetNX(ctx, r.prefix+key, value, ttl)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	st := r.Conn.Get(ctx, r.prefix+key)
	if err := st.Err(); err != nil {
		return nil, err
	}
	return st.Bytes()
}

func (r *redisAdapter) Del(ctx context.Context, key string) error {
	return r.Conn.Del(ctx, r.prefix+key).Err()
}

func (r *redisAdapter) Exist(ctx context.Context, key string) (int64, error) {
	return r.Conn.Exists(ctx, r.prefix+key).Result()
}

// Update runs an optimistic read-modify-write on key using WATCH/MULTI.
// fn receives nil when the key does not exist. ErrTxConflict is returned
// if another client wrote the key in between.
func (r *redisAdapter) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	fullKey := r.prefix + key
	return r.Conn.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, fullKey, next, 0)
			return nil
		})
		return err
	}, fullKey)
}

func (r *redisAdapter) Ping(ctx context.Context) error {
	return r.Conn.Ping(ctx).Err()
}

func (r *redisAdapter) Client() goredis.UniversalClient {
	return r.Conn
}

// Stream operations implementation

func (r *redisAdapter) XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error) {
	cmd := r.Conn.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.prefix + key,
		ID:     "*",
		Values: values,
	})
	if cmd.Err() != nil {
		return "", cmd.Err()
	}
	return cmd.Val(), nil
}

// XReadGroup never blocks; callers poll. NilError means nothing new.
func (r *redisAdapter) XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	streams := r.Conn.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.prefix + key, id},
		Count:    count,
		Block:    -1,
	})

	if streams.Err() != nil {
		return nil, streams.Err()
	}

	var messages []StreamMessage
	for _, stream := range streams.Val() {
		for _, msg := range stream.Messages {
			messages = append(messages, StreamMessage{
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

func (r *redisAdapter) XAck(ctx context.Context, key, group string, ids ...string) error {
	return r.Conn.XAck(ctx, r.prefix+key, group, ids...).Err()
}

func (r *redisAdapter) XGroupCreateMkStream(ctx context.Context, key, group, start string) error {
	return r.Conn.XGroupCreateMkStream(ctx, r.prefix+key, group, start).Err()
}

func (r *redisAdapter) XGroupDestroy(ctx context.Context, key, group string) error {
	return r.Conn.XGroupDestroy(ctx, r.prefix+key, group).Err()
}

func (r *redisAdapter) XLen(ctx context.Context, key string) (int64, error) {
	cmd := r.Conn.XLen(ctx, r.prefix+key)
	if cmd.Err() != nil {
		return 0, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XTrimApprox(ctx context.Context, key string, maxLen int64) error {
	return r.Conn.XTrimMaxLenApprox(ctx, r.prefix+key, maxLen, 0).Err()
}
