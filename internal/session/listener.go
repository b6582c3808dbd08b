package session

import (
	"context"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

type ReportSubscriber interface {
	Subscribe(ctx context.Context) (feed.Subscription, error)
}

// Listener feeds newly stored reports into a History. When the subscription
// drops it is not reopened; records stored meanwhile only show up after a
// full reload.
type Listener struct {
	sub     feed.Subscription
	history *History
	onNew   func(*model.Report)

	done chan struct{}
	once sync.Once
	err  error
}

// Listen opens the subscription and starts delivering. onNew may be nil; it
// runs on the delivery goroutine after the record is in history.
func Listen(ctx context.Context, subscriber ReportSubscriber, history *History, onNew func(*model.Report)) (*Listener, error) {
	sub, err := subscriber.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		sub:     sub,
		history: history,
		onNew:   onNew,
		done:    make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Listener) run() {
	defer close(l.done)
	for r := range l.sub.Reports() {
		if !l.history.Prepend(r) {
			continue
		}
		if l.onNew != nil {
			l.onNew(r)
		}
	}
	logger.Debug("report listener stopped")
}

// Done is closed once delivery has stopped, whether through Close or
// because the subscription ended.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close releases the subscription and waits for delivery to stop.
func (l *Listener) Close() error {
	l.once.Do(func() {
		l.err = l.sub.Close()
		<-l.done
	})
	return l.err
}
