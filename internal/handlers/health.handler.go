package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
)

type HealthService interface {
	Get(ctx context.Context) error
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if err := h.svc.Get(ctx); err != nil {
		writeError(ctx, xhttp.StatusServiceUnavailable, err.Error())
		return
	}
	ctx.Response.SetBodyString("success")
}
