package handlers

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamHandler_Pump(t *testing.T) {
	t.Run("writes events in order then stops when feed closes", func(t *testing.T) {
		h := NewStreamHandler(new(MockSubscriber))
		out := &lockedBuffer{}
		reports := make(chan *model.Report, 2)
		reports <- &model.Report{ID: 1, UnitID: "BC-01", Status: model.ReportStatusStopped}
		reports <- &model.Report{ID: 2, UnitID: "BC-02", Status: model.ReportStatusRunning}
		close(reports)

		h.pump(bufio.NewWriter(out), reports)

		got := out.String()
		assert.True(t, strings.HasPrefix(got, ": connected\n\n"))
		first := strings.Index(got, "id: 1\n")
		second := strings.Index(got, "id: 2\n")
		require.True(t, first > 0 && second > first, got)
		assert.Contains(t, got, "event: INSERT\nid: 1\ndata: {\"id\":1,\"unit_id\":\"BC-01\"")
	})

	t.Run("heartbeat", func(t *testing.T) {
		h := NewStreamHandler(new(MockSubscriber))
		h.heartbeat = 10 * time.Millisecond
		out := &lockedBuffer{}

		done := make(chan struct{})
		go func() {
			h.pump(bufio.NewWriter(out), make(chan *model.Report))
			close(done)
		}()

		require.Eventually(t, func() bool { return strings.Contains(out.String(), ": ping\n\n") },
			time.Second, 5*time.Millisecond)

		h.Close()
		h.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("pump did not stop on Close")
		}
	})

	t.Run("client gone", func(t *testing.T) {
		h := NewStreamHandler(new(MockSubscriber))
		reports := make(chan *model.Report)

		done := make(chan struct{})
		go func() {
			h.pump(bufio.NewWriterSize(failingWriter{}, 16), reports)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("pump kept running after write failure")
		}
	})
}

func TestStreamHandler_SubscribeFailure(t *testing.T) {
	sub := new(MockSubscriber)
	sub.On("Subscribe", mock.Anything).Return(nil, errors.New("redis down"))
	h := NewStreamHandler(sub)

	ctx := setupTestContext("GET", "/api/v1/reports/stream", nil)
	h.StreamReports(ctx)

	assert.Equal(t, 503, ctx.Response.StatusCode())
	sub.AssertCalled(t, "Subscribe", context.Background())
}
