package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

const defaultHeartbeat = 15 * time.Second

type ReportSubscriber interface {
	Subscribe(ctx context.Context) (feed.Subscription, error)
}

// StreamHandler pushes newly stored reports to clients as server-sent events.
type StreamHandler struct {
	feed      ReportSubscriber
	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func RegisterStreamRoutes(e *router.Group, h *StreamHandler) {
	e.GET("/reports/stream", h.StreamReports)
}

func NewStreamHandler(f ReportSubscriber) *StreamHandler {
	return &StreamHandler{
		feed:      f,
		heartbeat: defaultHeartbeat,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. The server cannot shut down while streams
// are attached.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *StreamHandler) StreamReports(ctx *xhttp.RequestCtx) {
	sub, err := h.feed.Subscribe(context.Background())
	if err != nil {
		logger.Error("failed to open report subscription", "error", err)
		writeError(ctx, xhttp.StatusServiceUnavailable, "live feed unavailable")
		return
	}

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")
	ctx.SetStatusCode(xhttp.StatusOK)

	remote := ctx.RemoteAddr().String()
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Warn("failed to close report subscription", "remote", remote, "error", err)
			}
		}()
		h.pump(w, sub.Reports())
		logger.Debug("report stream ended", "remote", remote)
	})
}

// pump writes events until the subscription ends, the handler is closed or
// the client goes away.
func (h *StreamHandler) pump(w *bufio.Writer, reports <-chan *model.Report) {
	// an initial comment gets the headers on the wire
	if err := writeComment(w, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if err := writeComment(w, "ping"); err != nil {
				return
			}
		case r, ok := <-reports:
			if !ok {
				return
			}
			if err := writeEvent(w, r); err != nil {
				return
			}
		}
	}
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := w.WriteString(": " + text + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writeEvent(w *bufio.Writer, r *model.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		logger.Error("failed to encode report event", "id", r.ID, "error", err)
		return nil
	}
	if _, err := w.WriteString("event: " + feed.EventInsert + "\nid: " + strconv.FormatInt(r.ID, 10) + "\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
