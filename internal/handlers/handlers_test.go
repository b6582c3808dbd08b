package handlers

import (
	"context"

	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Create(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportService) List(ctx context.Context, f model.ReportFilter) ([]*model.Report, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Report), args.Error(1)
}

func (m *MockReportService) ListAll(ctx context.Context) ([]*model.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Report), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Units(ctx context.Context) ([]*model.Unit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Unit), args.Error(1)
}

func (m *MockCatalogService) Faults(ctx context.Context) ([]model.FaultGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FaultGroup), args.Error(1)
}

func (m *MockCatalogService) CreateFault(ctx context.Context, p model.FaultCreateRequest) (*model.Fault, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Fault), args.Error(1)
}

type MockSubscriber struct {
	mock.Mock
}

func (m *MockSubscriber) Subscribe(ctx context.Context) (feed.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(feed.Subscription), args.Error(1)
}
