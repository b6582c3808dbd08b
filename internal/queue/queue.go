package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/redis"
)

var (
	ErrNameRequired    = errors.New("queue name is required")
	ErrHandlerRequired = errors.New("message handler is required")
	ErrStopTimeout     = errors.New("timeout waiting for consumer to stop")
)

type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. The message is acked whatever the
// handler returns; a tail consumer never sees a message twice.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name         string
	GroupPrefix  string
	PollInterval time.Duration
	BatchSize    int64
	MaxLen       int64
}

// Queue is an append-only Redis stream. Every Consume call gets a private
// consumer group positioned at the tail, so each consumer sees every message
// published after it started, in stream order, and nothing older.
type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
}

type QueueStats struct {
	TotalMessages int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, ErrNameRequired
	}
	if config.GroupPrefix == "" {
		config.GroupPrefix = "tail"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 200 * time.Millisecond
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	return &Queue{
		adapter: adapter,
		config:  config,
	}, nil
}

func (q *Queue) Name() string {
	return q.config.Name
}

// Publish appends a message to the stream and returns its stream id.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().UnixMilli(),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("[queue] trim failed", "queue", q.config.Name, "error", err)
		}
	}

	return id, nil
}

// PublishJSON publishes a JSON-encoded message
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume registers a tail consumer group and starts polling it. The group
// exists once Consume returns; messages published after that point reach
// handler. Call Stop on the returned Consumer to release the group.
func (q *Queue) Consume(ctx context.Context, handler MessageHandler) (*Consumer, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	group := q.config.GroupPrefix + ":" + uuid.NewString()
	if err := q.adapter.XGroupCreateMkStream(ctx, q.config.Name, group, "$"); err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		queue:   q,
		group:   group,
		name:    "consumer-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		handler: handler,
		ctx:     loopCtx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.consumeLoop()

	return c, nil
}

func (q *Queue) GetStats(ctx context.Context) (*QueueStats, error) {
	total, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}
	return &QueueStats{TotalMessages: total}, nil
}

type Consumer struct {
	queue   *Queue
	group   string
	name    string
	handler MessageHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func (c *Consumer) Group() string {
	return c.group
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.queue.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.processMessages()
		}
	}
}

func (c *Consumer) processMessages() {
	cfg := c.queue.config
	messages, err := c.queue.adapter.XReadGroup(c.ctx, c.group, c.name, cfg.Name, ">", cfg.BatchSize)
	if err != nil {
		if errors.Is(err, redis.NilError) || errors.Is(err, context.Canceled) {
			return
		}
		if strings.HasPrefix(err.Error(), "NOGROUP") {
			// stream or group vanished (flush, failover); resume at the
			// tail, whatever was published meanwhile is not replayed
			logger.Warn("[queue] consumer group lost, recreating at tail", "queue", cfg.Name, "group", c.group)
			if err := c.queue.adapter.XGroupCreateMkStream(c.ctx, cfg.Name, c.group, "$"); err != nil {
				logger.Error("[queue] recreate consumer group failed", "queue", cfg.Name, "error", err)
			}
			return
		}
		logger.Warn("[queue] read failed", "queue", cfg.Name, "group", c.group, "error", err)
		return
	}

	for _, streamMsg := range messages {
		if c.ctx.Err() != nil {
			return
		}
		msg := streamMessageToMessage(streamMsg)
		if err := c.handler(c.ctx, msg); err != nil {
			logger.Warn("[queue] handler failed", "queue", cfg.Name, "id", msg.ID, "error", err)
		}
		if err := c.queue.adapter.XAck(c.ctx, cfg.Name, c.group, msg.ID); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("[queue] ack failed", "queue", cfg.Name, "id", msg.ID, "error", err)
		}
	}
}

func streamMessageToMessage(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		val, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(val)
		case k == "timestamp":
			if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
				msg.Timestamp = time.UnixMilli(ms)
			}
		case strings.HasPrefix(k, "meta_"):
			msg.Metadata[strings.TrimPrefix(k, "meta_")] = val
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

// Stop halts polling, waits for the handler in flight and destroys the
// consumer group. It is safe to call more than once.
func (c *Consumer) Stop(timeout time.Duration) error {
	c.once.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			c.err = ErrStopTimeout
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.queue.adapter.XGroupDestroy(ctx, c.queue.config.Name, c.group); err != nil {
			c.err = fmt.Errorf("destroy consumer group: %w", err)
		}
	})
	return c.err
}
