package session

import (
	"context"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/localqueue"
	"github.com/nimasrn/kamoa-supervision/internal/localstore"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockInserter struct {
	mock.Mock
}

func (m *MockInserter) CreateReport(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

// chanSub is a subscription fed by the test.
type chanSub struct {
	ch   chan *model.Report
	once sync.Once
}

func newChanSub() *chanSub {
	return &chanSub{ch: make(chan *model.Report, 16)}
}

func (s *chanSub) Reports() <-chan *model.Report { return s.ch }

func (s *chanSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// fakeAPI echoes inserts onto its live subscription, the way the server
// feed does.
type fakeAPI struct {
	mu        sync.Mutex
	units     []*model.Unit
	library   []model.FaultGroup
	stored    []*model.Report
	nextID    int64
	insertErr error
	subErr    error
	sub       *chanSub
	faults    []model.FaultCreateRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		units:  []*model.Unit{{UnitID: "BC-01"}, {UnitID: "BC-02"}},
		nextID: 100,
		library: []model.FaultGroup{{
			Category: model.FaultCategorySafety,
			Faults:   []*model.Fault{{ID: 4, Category: model.FaultCategorySafety, Description: "Pull wire tripped"}},
		}},
	}
}

func (a *fakeAPI) CreateReport(_ context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.insertErr != nil {
		return nil, a.insertErr
	}
	a.nextID++
	r := &model.Report{
		ID:          a.nextID,
		UnitID:      p.UnitID,
		Status:      p.Status,
		Emoji:       p.Emoji,
		Description: p.Description,
		RawMessage:  p.RawMessage,
		ClientRef:   p.ClientRef,
	}
	a.stored = append(a.stored, r)
	return r, nil
}

// echo pushes every stored record to the live subscription.
func (a *fakeAPI) echo() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.stored {
		a.sub.ch <- r
	}
	a.stored = nil
}

func (a *fakeAPI) Subscribe(context.Context) (feed.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subErr != nil {
		return nil, a.subErr
	}
	a.sub = newChanSub()
	return a.sub, nil
}

func (a *fakeAPI) Units(context.Context) ([]*model.Unit, error) {
	return a.units, nil
}

func (a *fakeAPI) Faults(context.Context) ([]model.FaultGroup, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.library, nil
}

func (a *fakeAPI) CreateFault(_ context.Context, p model.FaultCreateRequest) (*model.Fault, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a.faults = append(a.faults, p)
	f := &model.Fault{ID: int64(10 + len(a.faults)), Category: p.Category, Description: p.Description}
	a.library = append(a.library, model.FaultGroup{Category: p.Category, Faults: []*model.Fault{f}})
	return f, nil
}

func (a *fakeAPI) Reports(context.Context, int) ([]*model.Report, error) {
	return nil, nil
}

type recordingClipboard struct {
	text string
}

func (c *recordingClipboard) WriteText(text string) error {
	c.text = text
	return nil
}

func newLocalQueue() (*localqueue.Queue, *localstore.MemoryStore) {
	store := localstore.NewMemoryStore()
	return localqueue.New(store), store
}
