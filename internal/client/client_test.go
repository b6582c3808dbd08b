package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/handlers"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type fakeReports struct {
	mu     sync.Mutex
	items  []*model.Report
	nextID int64
	block  chan struct{}
}

func (f *fakeReports) Create(_ context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	if f.block != nil {
		<-f.block
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &model.Report{
		ID:          f.nextID,
		UnitID:      p.UnitID,
		Status:      p.Status,
		Emoji:       p.Emoji,
		Description: p.Description,
		RawMessage:  p.RawMessage,
		CreatedAt:   model.NewTime(time.Date(2024, 5, 1, 6, 0, int(f.nextID), 0, time.UTC)),
		ClientRef:   p.ClientRef,
	}
	f.items = append(f.items, r)
	return r, nil
}

func (f *fakeReports) List(_ context.Context, flt model.ReportFilter) ([]*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Report, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0 && len(out) < flt.NormalizedLimit(); i-- {
		out = append(out, f.items[i])
	}
	return out, nil
}

func (f *fakeReports) ListAll(ctx context.Context) ([]*model.Report, error) {
	return f.List(ctx, model.ReportFilter{Limit: model.MaxReportLimit})
}

type fakeCatalog struct{}

func (fakeCatalog) Units(context.Context) ([]*model.Unit, error) {
	label := "Main belt"
	return []*model.Unit{{UnitID: "BC-01", Label: &label}, {UnitID: "BC-02"}}, nil
}

func (fakeCatalog) Faults(context.Context) ([]model.FaultGroup, error) {
	return []model.FaultGroup{{
		Category: model.FaultCategorySafety,
		Faults:   []*model.Fault{{ID: 1, Category: model.FaultCategorySafety, Description: "Pull wire tripped"}},
	}}, nil
}

func (fakeCatalog) CreateFault(_ context.Context, p model.FaultCreateRequest) (*model.Fault, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	return &model.Fault{ID: 7, Category: p.Category, Description: p.Description}, nil
}

type okHealth struct{}

func (okHealth) Get(context.Context) error { return nil }

type fakeSub struct {
	ch   chan *model.Report
	once sync.Once
}

func (s *fakeSub) Reports() <-chan *model.Report { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() {})
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(context.Context) (feed.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{ch: make(chan *model.Report, 16)}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeFeed) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func setupServer(t *testing.T, reports *fakeReports, ff *fakeFeed) *Client {
	t.Helper()

	r := router.New()
	api := r.Group("/api/v1")
	handlers.RegisterHealthRoutes(api, handlers.NewHealthHandler(okHealth{}))
	handlers.RegisterCatalogRoutes(api, handlers.NewCatalogHandler(fakeCatalog{}))
	handlers.RegisterReportRoutes(api, handlers.NewReportHandler(reports, ""))
	stream := handlers.NewStreamHandler(ff)
	handlers.RegisterStreamRoutes(api, stream)

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: r.Handler, CloseOnShutdown: true}
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		stream.Close()
		_ = srv.Shutdown()
		_ = ln.Close()
	})

	return New(Config{
		BaseURL: "http://kamoa.test/api/v1/",
		Timeout: 2 * time.Second,
		Dial:    func(string) (net.Conn, error) { return ln.Dial() },
	})
}

func TestClient_Catalog(t *testing.T) {
	c := setupServer(t, &fakeReports{}, &fakeFeed{})
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	units, err := c.Units(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Main belt", units[0].DisplayName())
	assert.Equal(t, "BC-02", units[1].UnitID)

	groups, err := c.Faults(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Pull wire tripped", groups[0].Faults[0].Description)

	f, err := c.CreateFault(ctx, model.FaultCreateRequest{Description: "Motor overheating"})
	require.NoError(t, err)
	assert.Equal(t, model.FaultCategorySafety, f.Category)

	_, err = c.CreateFault(ctx, model.FaultCreateRequest{Description: "  "})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fasthttp.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_CreateAndListReports(t *testing.T) {
	c := setupServer(t, &fakeReports{}, &fakeFeed{})
	ctx := context.Background()

	for _, unit := range []string{"BC-01", "BC-02", "CR-01"} {
		r, err := c.CreateReport(ctx, model.ReportCreateRequest{
			UnitID:      unit,
			Status:      model.ReportStatusStopped,
			Description: "Belt torn",
			ClientRef:   model.NewClientRef(),
		})
		require.NoError(t, err)
		assert.True(t, r.Persisted())
		assert.False(t, r.CreatedAt.IsZero())
	}

	items, err := c.Reports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CR-01", items[0].UnitID)
	assert.Equal(t, "BC-02", items[1].UnitID)

	all, err := c.Reports(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestClient_CreateReportRejected(t *testing.T) {
	c := setupServer(t, &fakeReports{}, &fakeFeed{})

	_, err := c.CreateReport(context.Background(), model.ReportCreateRequest{
		UnitID: "BC-01",
		Status: "BROKEN",
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fasthttp.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "status must be STOPPED or RUNNING")
}

func TestClient_CreateReportBlocksUntilCancelled(t *testing.T) {
	reports := &fakeReports{block: make(chan struct{})}
	c := setupServer(t, reports, &fakeFeed{})
	t.Cleanup(func() { close(reports.block) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.CreateReport(ctx, model.ReportCreateRequest{
			UnitID:      "BC-01",
			Status:      model.ReportStatusStopped,
			Description: "Belt torn",
		})
		errc <- err
	}()

	select {
	case err := <-errc:
		t.Fatalf("insert returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("insert ignored cancellation")
	}
}

func TestClient_Subscribe(t *testing.T) {
	ff := &fakeFeed{}
	c := setupServer(t, &fakeReports{}, ff)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	server := ff.last()
	require.NotNil(t, server)

	for i := int64(1); i <= 3; i++ {
		server.ch <- &model.Report{ID: i, UnitID: "BC-01", Status: model.ReportStatusStopped, RawMessage: "line 1\nline 2"}
	}

	for i := int64(1); i <= 3; i++ {
		select {
		case r := <-sub.Reports():
			assert.Equal(t, i, r.ID)
			assert.Equal(t, "line 1\nline 2", r.RawMessage)
		case <-time.After(2 * time.Second):
			t.Fatalf("record %d not delivered", i)
		}
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.Reports()
	assert.False(t, ok)
}

func TestClient_SubscribeEndsWithServerStream(t *testing.T) {
	ff := &fakeFeed{}
	c := setupServer(t, &fakeReports{}, ff)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	close(ff.last().ch)

	select {
	case _, ok := <-sub.Reports():
		assert.False(t, ok, "no replay, channel just closes")
	case <-time.After(2 * time.Second):
		t.Fatal("stream end not noticed")
	}
}

func TestClient_SubscribeUnavailable(t *testing.T) {
	c := setupServer(t, &fakeReports{}, &fakeFeed{err: errors.New("redis down")})

	_, err := c.Subscribe(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "live feed unavailable", apiErr.Message)
}

func TestDecodeEvents(t *testing.T) {
	input := ": connected\n\n" +
		"event: INSERT\nid: 1\ndata: {\"id\":1}\n\n" +
		": ping\n\n" +
		"data: first\ndata: second\n\n" +
		"event: INSERT\r\nid: 3\r\ndata:{\"id\":3}\r\n\r\n" +
		"data: truncated"

	var got []Event
	err := DecodeEvents(strings.NewReader(input), func(ev Event) bool {
		got = append(got, ev)
		return true
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Event{Type: "INSERT", ID: "1", Data: []byte(`{"id":1}`)}, got[0])
	assert.Equal(t, "first\nsecond", string(got[1].Data))
	assert.Equal(t, "", got[1].Type)
	assert.Equal(t, `{"id":3}`, string(got[2].Data))
	assert.Equal(t, "3", got[2].ID)
}

func TestDecodeEvents_StopsEarly(t *testing.T) {
	input := "data: a\n\ndata: b\n\n"
	calls := 0
	err := DecodeEvents(strings.NewReader(input), func(Event) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
