package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/nimasrn/kamoa-supervision/internal/services"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		ctx.Error(xhttp.StatusText(xhttp.StatusInternalServerError), xhttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps validation failures to 400 and hides everything
// else behind a 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	if errors.Is(err, services.ErrInvalidInput) {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	logger.Error("request failed", "path", string(ctx.Path()), "error", err)
	writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, err := strconv.Atoi(query(ctx, key))
	if err != nil {
		return 0
	}
	return n
}
