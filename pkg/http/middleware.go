package xhttp

import (
	"strings"
	"time"

	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

var skipLogPaths = []string{"/api/v1/health", "/metrics"}

// streamSuffix marks long-lived event stream routes. They must not be
// buffered by the compressor nor cut by the request timeout.
const streamSuffix = "/stream"

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		limited := fasthttp.TimeoutWithCodeHandler(next, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
		return func(ctx *RequestCtx) {
			if isStream(ctx) {
				next(ctx)
				return
			}
			limited(ctx)
		}
	}
}

func CompressMiddleware(level int) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		compressed := fasthttp.CompressHandlerBrotliLevel(next, level, level)
		return func(ctx *RequestCtx) {
			if isStream(ctx) {
				next(ctx)
				return
			}
			compressed(ctx)
		}
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
				logger.Error("[xhttp] panic recovered", "error", err, "path", string(ctx.Path()))
			}
		}()
		next(ctx)
	}
}

func RequestLoggerMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		latency := time.Since(start)
		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency", latency.String(),
			"bytes_in", len(ctx.PostBody()),
			"ip", ctx.RemoteIP().String(),
			"ua", string(ctx.Request.Header.UserAgent()),
			"request_id", requestID(ctx),
		}

		lg := logger.GetLogger()
		switch {
		case status >= 500:
			lg.Error("http_request", fields...)
		case status >= 400 || latency > slowThreshold:
			lg.Warn("http_request", fields...)
		default:
			lg.Info("http_request", fields...)
		}
	}
}

func isStream(ctx *RequestCtx) bool {
	return strings.HasSuffix(string(ctx.Path()), streamSuffix)
}

func shouldSkip(p string) bool {
	for _, sp := range skipLogPaths {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Peek("X-Request-Id"); len(v) > 0 {
		return string(v)
	}
	return ""
}
