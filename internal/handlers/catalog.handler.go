package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
)

type CatalogService interface {
	Units(ctx context.Context) ([]*model.Unit, error)
	Faults(ctx context.Context) ([]model.FaultGroup, error)
	CreateFault(ctx context.Context, p model.FaultCreateRequest) (*model.Fault, error)
}

type CatalogHandler struct {
	svc CatalogService
}

func RegisterCatalogRoutes(e *router.Group, h *CatalogHandler) {
	e.GET("/units", h.ListUnits)
	e.GET("/faults", h.ListFaults)
	e.POST("/faults", h.CreateFault)
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{
		svc: svc,
	}
}

type unitsResponse struct {
	Items []*model.Unit `json:"items"`
}

type faultsResponse struct {
	Groups []model.FaultGroup `json:"groups"`
}

func (h *CatalogHandler) ListUnits(ctx *xhttp.RequestCtx) {
	units, err := h.svc.Units(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if units == nil {
		units = []*model.Unit{}
	}
	writeJSON(ctx, xhttp.StatusOK, unitsResponse{Items: units})
}

func (h *CatalogHandler) ListFaults(ctx *xhttp.RequestCtx) {
	groups, err := h.svc.Faults(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if groups == nil {
		groups = []model.FaultGroup{}
	}
	writeJSON(ctx, xhttp.StatusOK, faultsResponse{Groups: groups})
}

func (h *CatalogHandler) CreateFault(ctx *xhttp.RequestCtx) {
	var req model.FaultCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	f, err := h.svc.CreateFault(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, f)
}
