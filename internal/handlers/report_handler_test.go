package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReportHandler_CreateReport(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockReportService)
		handler := NewReportHandler(svc, "")

		body, _ := json.Marshal(model.ReportCreateRequest{
			UnitID:      "BC-01",
			Status:      model.ReportStatusStopped,
			Emoji:       "⛔",
			Description: "Guard open",
		})

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.ReportCreateRequest) bool {
			return p.UnitID == "BC-01" && p.Status == model.ReportStatusStopped && p.Description == "Guard open"
		})).Return(&model.Report{ID: 42, UnitID: "BC-01", Status: model.ReportStatusStopped}, nil)

		ctx := setupTestContext("POST", "/api/v1/reports", body)
		handler.CreateReport(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		var got model.Report
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, int64(42), got.ID)
		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		handler := NewReportHandler(new(MockReportService), "")

		ctx := setupTestContext("POST", "/api/v1/reports", []byte("{"))
		handler.CreateReport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		var resp map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Contains(t, resp["error"], "invalid JSON")
	})

	t.Run("validation error", func(t *testing.T) {
		svc := new(MockReportService)
		handler := NewReportHandler(svc, "")
		svc.On("Create", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", services.ErrInvalidInput, model.ErrUnitRequired))

		ctx := setupTestContext("POST", "/api/v1/reports", []byte(`{"status":"STOPPED"}`))
		handler.CreateReport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "unit_id is required")
	})

	t.Run("store error", func(t *testing.T) {
		svc := new(MockReportService)
		handler := NewReportHandler(svc, "")
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("pq: connection refused"))

		ctx := setupTestContext("POST", "/api/v1/reports", []byte(`{"unit_id":"BC-01","status":"STOPPED","description":"x"}`))
		handler.CreateReport(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		assert.NotContains(t, string(ctx.Response.Body()), "pq:")
	})
}

func TestReportHandler_ListReports(t *testing.T) {
	t.Run("limit and unit passed through", func(t *testing.T) {
		svc := new(MockReportService)
		handler := NewReportHandler(svc, "")

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.ReportFilter) bool {
			return f.Limit == 20 && f.UnitID != nil && *f.UnitID == "BC-02"
		})).Return([]*model.Report{{ID: 2}, {ID: 1}}, nil)

		ctx := setupTestContext("GET", "/api/v1/reports?limit=20&unit_id=BC-02", nil)
		handler.ListReports(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp reportsResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		require.Len(t, resp.Items, 2)
		assert.Equal(t, int64(2), resp.Items[0].ID)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		svc := new(MockReportService)
		handler := NewReportHandler(svc, "")
		svc.On("List", mock.Anything, model.ReportFilter{}).Return(nil, nil)

		ctx := setupTestContext("GET", "/api/v1/reports?limit=abc", nil)
		handler.ListReports(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"items":[]}`, string(ctx.Response.Body()))
	})
}

func TestReportHandler_AdminReports(t *testing.T) {
	svc := new(MockReportService)
	svc.On("ListAll", mock.Anything).Return([]*model.Report{{ID: 1}}, nil)

	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"valid key", "s3cret", "s3cret", 200},
		{"wrong key", "s3cret", "guess", 401},
		{"missing key", "s3cret", "", 401},
		{"admin disabled", "", "", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewReportHandler(svc, tt.configured)
			ctx := setupTestContext("GET", "/api/v1/admin/reports", nil)
			if tt.sent != "" {
				ctx.Request.Header.Set(AdminKeyHeader, tt.sent)
			}

			handler.RequireAdmin(handler.ListAllReports)(ctx)
			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
		})
	}
}
