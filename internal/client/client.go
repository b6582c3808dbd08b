// Package client is the console side of the supervision API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/valyala/fasthttp"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	// BaseURL includes the version prefix, e.g. http://host:8080/api/v1.
	BaseURL string

	// Timeout bounds the catalog and history reads. Report inserts only
	// honour the caller's context.
	Timeout time.Duration

	MaxConnsPerHost int
	ReadBufferSize  int
	WriteBufferSize int

	// Dial replaces the TCP dialer; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

type Client struct {
	baseURL string
	timeout time.Duration
	dial    fasthttp.DialFunc
	http    *fasthttp.Client
}

func New(config Config) *Client {
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = 16
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 16 * 1024
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = 4 * 1024
	}
	dial := config.Dial
	if dial == nil {
		dial = fasthttp.Dial
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		timeout: config.Timeout,
		dial:    dial,
		http: &fasthttp.Client{
			Name:                "kamoa-console",
			Dial:                dial,
			MaxConnsPerHost:     config.MaxConnsPerHost,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.readCtx(ctx)
	defer cancel()
	_, err := c.doRequest(ctx, fasthttp.MethodGet, "/health", nil)
	return err
}

func (c *Client) Units(ctx context.Context) ([]*model.Unit, error) {
	var out struct {
		Items []*model.Unit `json:"items"`
	}
	if err := c.getJSON(ctx, "/units", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Faults(ctx context.Context) ([]model.FaultGroup, error) {
	var out struct {
		Groups []model.FaultGroup `json:"groups"`
	}
	if err := c.getJSON(ctx, "/faults", &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

func (c *Client) CreateFault(ctx context.Context, p model.FaultCreateRequest) (*model.Fault, error) {
	ctx, cancel := c.readCtx(ctx)
	defer cancel()
	var f model.Fault
	if err := c.postJSON(ctx, "/faults", p, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Reports returns the newest stored reports first. limit <= 0 lets the
// server pick its default.
func (c *Client) Reports(ctx context.Context, limit int) ([]*model.Report, error) {
	path := "/reports"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Items []*model.Report `json:"items"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateReport inserts p and returns the stored record. It blocks until the
// server answers or ctx is done; no default timeout applies.
func (c *Client) CreateReport(ctx context.Context, p model.ReportCreateRequest) (*model.Report, error) {
	var r model.Report
	if err := c.postJSON(ctx, "/reports", p, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// readCtx applies Timeout unless ctx already carries a deadline.
func (c *Client) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	ctx, cancel := c.readCtx(ctx)
	defer cancel()
	body, err := c.doRequest(ctx, fasthttp.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, dst any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := c.doRequest(ctx, fasthttp.MethodPost, path, reqBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

type result struct {
	body []byte
	err  error
}

// doRequest runs one exchange in its own goroutine so that ctx can abandon
// it. An abandoned exchange finishes in the background and is discarded.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan result, 1)
	go func() {
		b, err := c.exchange(ctx, method, path, body)
		done <- result{body: b, err: err}
	}()

	select {
	case res := <-done:
		return res.body, res.err
	case <-ctx.Done():
		logger.Debug("[client] request abandoned", "method", method, "path", path, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (c *Client) exchange(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: errorMessage(resp.Body())}
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
