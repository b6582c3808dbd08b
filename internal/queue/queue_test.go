package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/kamoa-supervision/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	// unique connection name per test, adapters are cached by name
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func newTestQueue(t *testing.T, adapter redis.RedisAdapter, name string) *Queue {
	q, err := NewQueue(adapter, QueueConfig{
		Name:         name,
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		MaxLen:       1000,
	})
	require.NoError(t, err)
	return q
}

type collector struct {
	mu   sync.Mutex
	msgs []*Message
}

func (c *collector) handle(_ context.Context, msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collector) snapshot() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Message(nil), c.msgs...)
}

func TestNewQueue_Validation(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewQueue(adapter, QueueConfig{})
	assert.ErrorIs(t, err, ErrNameRequired)

	q, err := NewQueue(adapter, QueueConfig{Name: "q"})
	require.NoError(t, err)
	assert.Equal(t, "tail", q.config.GroupPrefix)
	assert.Equal(t, int64(50), q.config.BatchSize)
	assert.Equal(t, 200*time.Millisecond, q.config.PollInterval)
}

func TestQueue_PublishAndConsume(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:feed")
	ctx := context.Background()

	c := &collector{}
	consumer, err := q.Consume(ctx, c.handle)
	require.NoError(t, err)
	defer consumer.Stop(time.Second)

	for i := 0; i < 5; i++ {
		_, err := q.PublishJSON(ctx, map[string]int{"n": i}, map[string]string{"type": "report"})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(c.snapshot()) == 5 }, 2*time.Second, 10*time.Millisecond)

	for i, msg := range c.snapshot() {
		var body map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		assert.Equal(t, i, body["n"], "stream order must be preserved")
		assert.Equal(t, "report", msg.Metadata["type"])
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestQueue_ConsumerStartsAtTail(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:tail")
	ctx := context.Background()

	_, err := q.Publish(ctx, []byte("old"), nil)
	require.NoError(t, err)

	c := &collector{}
	consumer, err := q.Consume(ctx, c.handle)
	require.NoError(t, err)
	defer consumer.Stop(time.Second)

	_, err = q.Publish(ctx, []byte("new"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	msgs := c.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", string(msgs[0].Data))
}

func TestQueue_EachConsumerGetsEveryMessage(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:fanout")
	ctx := context.Background()

	a, b := &collector{}, &collector{}
	ca, err := q.Consume(ctx, a.handle)
	require.NoError(t, err)
	defer ca.Stop(time.Second)
	cb, err := q.Consume(ctx, b.handle)
	require.NoError(t, err)
	defer cb.Stop(time.Second)
	assert.NotEqual(t, ca.Group(), cb.Group())

	for i := 0; i < 3; i++ {
		_, err := q.Publish(ctx, []byte{byte('a' + i)}, nil)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(a.snapshot()) == 3 && len(b.snapshot()) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumer_StopDestroysGroup(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:stop")
	ctx := context.Background()

	c := &collector{}
	consumer, err := q.Consume(ctx, c.handle)
	require.NoError(t, err)

	require.NoError(t, consumer.Stop(time.Second))
	require.NoError(t, consumer.Stop(time.Second), "second stop is a no-op")

	_, err = q.Publish(ctx, []byte("after stop"), nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.snapshot())

	_, err = adapter.XReadGroup(ctx, consumer.Group(), "stopcheck", "test:stop", ">", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOGROUP")
}

func TestConsumer_HandlerErrorStillAcks(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:ack")
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	consumer, err := q.Consume(ctx, func(ctx context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return assert.AnError
	})
	require.NoError(t, err)
	defer consumer.Stop(time.Second)

	_, err = q.Publish(ctx, []byte("x"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "failed messages are not redelivered")
}

func TestQueue_ConsumeRequiresHandler(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:nohandler")

	_, err := q.Consume(context.Background(), nil)
	assert.ErrorIs(t, err, ErrHandlerRequired)
}

func TestQueue_GetStats(t *testing.T) {
	_, adapter := setupTestRedis(t)
	q := newTestQueue(t, adapter, "test:stats")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := q.Publish(ctx, []byte("m"), nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalMessages)
}
