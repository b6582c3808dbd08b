package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type Router = router.Router
type Group = router.Group

const (
	StatusOK                  = fasthttp.StatusOK
	StatusCreated             = fasthttp.StatusCreated
	StatusBadRequest          = fasthttp.StatusBadRequest
	StatusUnauthorized        = fasthttp.StatusUnauthorized
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
	StatusServiceUnavailable  = fasthttp.StatusServiceUnavailable
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}

// CreateDefaultRouter returns a router with the 404/405 handlers and
// trailing slash redirects set up.
func CreateDefaultRouter() *Router {
	r := router.New()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	ctx.Error(StatusText(StatusNotFound), StatusNotFound)
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	ctx.Error(`{"error":"Method not allowed"}`, fasthttp.StatusMethodNotAllowed)
	ctx.SetContentType("application/json; charset=utf-8")
}
