// Package api implements the expense service over its HTTP/JSON interface.
package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"expensectl/internal/core"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

const maxErrorBody = 4 << 10

var (
	errBaseURL           = errors.New("invalid API base URL")
	errHTTPBodyUnmarshal = errors.New("error unmarshalling HTTP response body")
)

var _ ports.ExpenseService = (*Client)(nil)

// Client talks to the expense API rooted at a base URL.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the overall per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentAPI)
		}
	}
}

// NewClient creates a client for the API at baseURL, e.g. "http://127.0.0.1:5000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errBaseURL, baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w %q", errBaseURL, baseURL)
	}

	c := &Client{
		httpClient: newHTTPClientWithPooling(),
		baseURL:    u,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,
		Proxy:       http.ProxyFromEnvironment,

		// A single API host, so a small pool is enough
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// ListExpenses sends GET /expenses and expects 200.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var body listResponse
	if err := c.do(ctx, core.OpList, http.MethodGet, c.baseURL.JoinPath("expenses"), nil, &body); err != nil {
		return nil, err
	}

	expenses := make([]core.Expense, 0, len(body.Expenses))
	for i, dto := range body.Expenses {
		e, err := dto.toCore()
		if err != nil {
			return nil, fmt.Errorf("%s: expense %d: %w", core.OpList, i, err)
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// CreateExpense sends POST /expenses and expects 201. The echoed record is
// returned when the body can be decoded; a 201 with an unreadable body is
// still a success and yields a zero Expense.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	req := createRequest{
		Description: e.Description,
		Amount:      json.Number(e.Amount.String()),
		Date:        e.Date,
	}

	var created expenseDTO
	err := c.do(ctx, core.OpCreate, http.MethodPost, c.baseURL.JoinPath("expenses"), req, &created)
	if errors.Is(err, errHTTPBodyUnmarshal) {
		c.logger.WarnContext(ctx, "Created expense echo could not be decoded", log.FieldError, err)
		return core.Expense{}, nil
	}
	if err != nil {
		return core.Expense{}, err
	}

	out, err := created.toCore()
	if err != nil {
		c.logger.WarnContext(ctx, "Created expense echo is malformed", log.FieldError, err)
		return core.Expense{}, nil
	}
	return out, nil
}

// UpdateExpense sends PUT /expenses/{id} with the changed fields and expects 200.
func (c *Client) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) error {
	req := patchRequest{
		Description: p.Description,
		Date:        p.Date,
	}
	if p.Amount != nil {
		n := json.Number(p.Amount.String())
		req.Amount = &n
	}
	return c.do(ctx, core.OpUpdate, http.MethodPut, c.expenseURL(id), req, nil)
}

// DeleteExpense sends DELETE /expenses/{id} and expects 204.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, core.OpDelete, http.MethodDelete, c.expenseURL(id), nil, nil)
}

func (c *Client) expenseURL(id int64) *url.URL {
	return c.baseURL.JoinPath("expenses", fmt.Sprintf("%d", id))
}

// do sends one request and checks the response against the success status of op.
// When out is non-nil the response body is decoded into it.
func (c *Client) do(ctx context.Context, op core.Operation, method string, u *url.URL, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := generateRequestID()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldRequestID, requestID,
			log.FieldMethod, method,
			log.FieldURL, u.String(),
			log.FieldError, err)
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	success := resp.StatusCode == op.SuccessStatus()
	c.logger.DebugContext(ctx, "API request completed",
		log.NewFields().
			WithOperation(string(op)).
			WithHTTPResponse(resp.StatusCode, time.Since(start).Milliseconds(), success).
			ToSlice()...)

	if !success {
		return &core.StatusError{Op: op, Code: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %w", op, errHTTPBodyUnmarshal, err)
	}
	return nil
}

// readErrorMessage extracts a human readable reason from an error response.
func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body errorResponse
	if json.Unmarshal(b, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(b))
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
