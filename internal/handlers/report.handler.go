package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/fasthttp/router"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
)

const AdminKeyHeader = "X-Admin-Key"

type ReportService interface {
	Create(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error)
	List(ctx context.Context, f model.ReportFilter) ([]*model.Report, error)
	ListAll(ctx context.Context) ([]*model.Report, error)
}

type ReportHandler struct {
	svc      ReportService
	adminKey string
}

func RegisterReportRoutes(e *router.Group, h *ReportHandler) {
	e.POST("/reports", h.CreateReport)
	e.GET("/reports", h.ListReports)
	e.GET("/admin/reports", h.RequireAdmin(h.ListAllReports))
}

// NewReportHandler builds the report endpoints. An empty adminKey disables
// the admin listing entirely.
func NewReportHandler(svc ReportService, adminKey string) *ReportHandler {
	return &ReportHandler{
		svc:      svc,
		adminKey: adminKey,
	}
}

type reportsResponse struct {
	Items []*model.Report `json:"items"`
}

func (h *ReportHandler) CreateReport(ctx *xhttp.RequestCtx) {
	var req model.ReportCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	r, err := h.svc.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, r)
}

func (h *ReportHandler) ListReports(ctx *xhttp.RequestCtx) {
	f := model.ReportFilter{Limit: queryInt(ctx, "limit")}
	if v := query(ctx, "unit_id"); v != "" {
		f.UnitID = &v
	}

	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeReports(ctx, items)
}

func (h *ReportHandler) ListAllReports(ctx *xhttp.RequestCtx) {
	items, err := h.svc.ListAll(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeReports(ctx, items)
}

func (h *ReportHandler) RequireAdmin(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		got := ctx.Request.Header.Peek(AdminKeyHeader)
		if h.adminKey == "" || subtle.ConstantTimeCompare(got, []byte(h.adminKey)) != 1 {
			writeError(ctx, xhttp.StatusUnauthorized, "unauthorized")
			return
		}
		next(ctx)
	}
}

func writeReports(ctx *xhttp.RequestCtx, items []*model.Report) {
	if items == nil {
		items = []*model.Report{}
	}
	writeJSON(ctx, xhttp.StatusOK, reportsResponse{Items: items})
}
