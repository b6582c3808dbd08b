// Package feed carries newly persisted reports from the api server to live
// listeners. It is at-most-once: a subscriber sees the records committed
// after Subscribe returns, in commit order, and nothing is replayed after a
// disconnect.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/queue"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/prom"
)

const (
	EventInsert = "INSERT"
	TableReport = "reports"

	defaultBuffer      = 64
	defaultStopTimeout = 2 * time.Second
)

var ErrClosed = errors.New("subscription closed")

// Subscription is one live view of the feed. Reports is closed after Close.
type Subscription interface {
	Reports() <-chan *model.Report
	Close() error
}

type Feed struct {
	queue       *queue.Queue
	buffer      int
	stopTimeout time.Duration
}

func New(q *queue.Queue) *Feed {
	return &Feed{
		queue:       q,
		buffer:      defaultBuffer,
		stopTimeout: defaultStopTimeout,
	}
}

// Publish appends a persisted report to the change log.
func (f *Feed) Publish(ctx context.Context, r *model.Report) error {
	_, err := f.queue.PublishJSON(ctx, r, map[string]string{
		"event": EventInsert,
		"table": TableReport,
	})
	if err != nil {
		prom.FeedPublishFailed()
		return err
	}
	prom.FeedPublished()
	return nil
}

func (f *Feed) Subscribe(ctx context.Context) (Subscription, error) {
	s := &streamSubscription{
		ch:      make(chan *model.Report, f.buffer),
		done:    make(chan struct{}),
		timeout: f.stopTimeout,
		stream:  f.queue.Name(),
	}

	consumer, err := f.queue.Consume(ctx, s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", f.queue.Name(), err)
	}
	s.consumer = consumer
	prom.FeedSubscribers(s.stream, 1)

	return s, nil
}

type streamSubscription struct {
	consumer *queue.Consumer
	ch       chan *model.Report
	done     chan struct{}
	timeout  time.Duration
	stream   string
	once     sync.Once
	err      error

	mu     sync.RWMutex
	closed bool
}

func (s *streamSubscription) Reports() <-chan *model.Report {
	return s.ch
}

func (s *streamSubscription) handle(ctx context.Context, msg *queue.Message) error {
	if msg.Metadata["table"] != "" && msg.Metadata["table"] != TableReport {
		return nil
	}

	var r model.Report
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		logger.Warn("[feed] dropping undecodable record", "id", msg.ID, "error", err)
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.ch <- &r:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *streamSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.consumer.Stop(s.timeout)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		prom.FeedSubscribers(s.stream, -1)
	})
	return s.err
}
