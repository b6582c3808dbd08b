package xhttp

import (
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/valyala/fasthttp"
)

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Server = fasthttp.Server

// ServerOption carries the fasthttp knobs the services actually tune.
type ServerOption struct {
	// idle keep-alive connections are closed after this long
	IdleTimeout time.Duration

	MaxRequestBodySize int

	ReadBufferSize  int
	WriteBufferSize int

	// ReadTimeout bounds reading the whole request including the body.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response. Zero disables it, which
	// long-lived event streams need.
	WriteTimeout time.Duration

	Concurrency   int
	MaxConnsPerIP int
	Name          string
	Logger        logger.Logger
}

var DefaultServerOption = ServerOption{
	IdleTimeout:        time.Second * 10,
	MaxRequestBodySize: 1 * 1024 * 1024,
	ReadBufferSize:     1024 * 4,
	WriteBufferSize:    1024 * 4,
	ReadTimeout:        time.Millisecond * 2500,
	WriteTimeout:       0,
	Concurrency:        10_000,
	MaxConnsPerIP:      1_000,
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	l := options.Logger
	if l == nil {
		l = logger.GetLogger()
	}
	return &fasthttp.Server{
		Handler: NotFoundHandler,
		ErrorHandler: func(ctx *RequestCtx, err error) {
			logger.Warn("[xhttp] request error", "error", err, "path", string(ctx.Path()))
		},
		Name:                  options.Name,
		Concurrency:           options.Concurrency,
		ReadBufferSize:        options.ReadBufferSize,
		WriteBufferSize:       options.WriteBufferSize,
		ReadTimeout:           options.ReadTimeout,
		WriteTimeout:          options.WriteTimeout,
		IdleTimeout:           options.IdleTimeout,
		MaxConnsPerIP:         options.MaxConnsPerIP,
		MaxRequestBodySize:    options.MaxRequestBodySize,
		TCPKeepalive:          true,
		NoDefaultServerHeader: true,
		NoDefaultContentType:  true,
		CloseOnShutdown:       true,
		Logger:                l,
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: CreateDefaultRouter(),
		option: options,
	}
}

func (e *Engine) ListenAndServe(addr string) error {
	if err := e.DoRouting(); err != nil {
		return err
	}
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting installs the router as the server handler and wraps it with the
// registered middlewares, first registered outermost.
func (e *Engine) DoRouting() error {
	for method, route := range e.Router.List() {
		for _, r := range route {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}
	e.Server.Handler = e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for i, m := range middle {
		e.Server.Handler = m(e.Server.Handler)
		logger.Debug("[xhttp] middleware registered", "index", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	return nil
}

// Handler returns the fully wrapped handler; DoRouting must run first.
func (e *Engine) Handler() RequestHandler {
	return e.Server.Handler
}

// CloseOnSignal shuts the server down on SIGINT/SIGTERM and then calls done.
func (e *Engine) CloseOnSignal(done func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-sig
		logger.Info("[xhttp] signal received", "signal", s.String())
		e.Shutdown()
		if done != nil {
			done()
		}
	}()
}

// Use adds middleware to the chain which is run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown gracefully shuts down the server without interrupting any active connections.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
