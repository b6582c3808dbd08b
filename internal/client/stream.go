package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	streamPath      = "/reports/stream"
	streamBuffer    = 64
	maxEventSize    = 1 << 20
	eventTypeInsert = feed.EventInsert
)

var ErrStreamClosed = errors.New("report stream closed")

// Subscribe opens the server-sent event stream of newly stored reports.
// Records committed before the call returns are not delivered, and nothing
// is replayed after the stream drops: the Reports channel is just closed.
func (c *Client) Subscribe(ctx context.Context) (feed.Subscription, error) {
	d := &connDialer{dial: c.dial}
	hc := &fasthttp.Client{
		Name:               "kamoa-console-stream",
		Dial:               d.Dial,
		MaxConnsPerHost:    1,
		ReadBufferSize:     16 * 1024,
		StreamResponseBody: true,
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		_ = resp.CloseBodyStream()
		fasthttp.ReleaseResponse(resp)
		fasthttp.ReleaseRequest(req)
		hc.CloseIdleConnections()
	}

	req.SetRequestURI(c.baseURL + streamPath)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.SetConnectionClose()

	// Do returns once the headers are in; the body keeps streaming
	errc := make(chan error, 1)
	go func() { errc <- hc.Do(req, resp) }()

	select {
	case err := <-errc:
		if err != nil {
			release()
			return nil, err
		}
	case <-ctx.Done():
		d.Close()
		<-errc
		release()
		return nil, ctx.Err()
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var body []byte
		if bs := resp.BodyStream(); bs != nil {
			body, _ = io.ReadAll(io.LimitReader(bs, 4096))
		} else {
			body = resp.Body()
		}
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(body)}
		d.Close()
		release()
		return nil, apiErr
	}

	s := &streamSubscription{
		ch:     make(chan *model.Report, streamBuffer),
		done:   make(chan struct{}),
		dialer: d,
	}
	s.wg.Add(1)
	go s.read(resp.BodyStream(), release)

	logger.Info("[client] report stream opened", "url", c.baseURL+streamPath)
	return s, nil
}

type streamSubscription struct {
	ch     chan *model.Report
	done   chan struct{}
	dialer *connDialer
	once   sync.Once
	wg     sync.WaitGroup
}

func (s *streamSubscription) Reports() <-chan *model.Report {
	return s.ch
}

// Close cuts the connection and waits for the reader. Safe to call twice.
func (s *streamSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.dialer.Close()
	})
	s.wg.Wait()
	return nil
}

func (s *streamSubscription) read(body io.Reader, release func()) {
	defer s.wg.Done()
	defer close(s.ch)
	defer release()

	if body == nil {
		return
	}

	err := DecodeEvents(body, func(ev Event) bool {
		if ev.Type != "" && ev.Type != eventTypeInsert {
			return true
		}
		var r model.Report
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			logger.Warn("[client] skipping malformed report event", "id", ev.ID, "error", err)
			return true
		}
		select {
		case s.ch <- &r:
			return true
		case <-s.done:
			return false
		}
	})

	select {
	case <-s.done:
	default:
		if err == nil {
			err = ErrStreamClosed
		}
		logger.Warn("[client] report stream ended", "error", err)
	}
}

// Event is one server-sent event.
type Event struct {
	Type string
	ID   string
	Data []byte
}

// DecodeEvents reads text/event-stream frames from r and calls fn for each
// complete event until fn returns false or r ends. Comment lines are
// dropped. It returns nil on a clean end of stream.
func DecodeEvents(r io.Reader, fn func(Event) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)

	var ev Event
	var data bytes.Buffer
	hasData := false

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if hasData {
				ev.Data = append([]byte(nil), data.Bytes()...)
				if !fn(ev) {
					return nil
				}
			}
			ev = Event{}
			data.Reset()
			hasData = false
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "id":
			ev.ID = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		}
	}
	return sc.Err()
}

// connDialer remembers the stream connection so that Close can unblock a
// pending read.
type connDialer struct {
	dial   fasthttp.DialFunc
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func (d *connDialer) Dial(addr string) (net.Conn, error) {
	conn, err := d.dial(addr)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		_ = conn.Close()
		return nil, ErrStreamClosed
	}
	d.conn = conn
	return conn, nil
}

func (d *connDialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.conn != nil {
		_ = d.conn.Close()
	}
}
