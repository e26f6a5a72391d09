// Package rpc is the typed client for the remote API. Endpoints are declared
// once with their params and response types; Call resolves, sends and decodes
// them and maps failures onto the query error taxonomy.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "wayfinder/internal/errors"
)

const maxBodySize = 10 << 20

// Response is the raw outcome of a call.
type Response struct {
	StatusCode int
	OK         bool
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v. An empty body leaves v untouched.
func (r *Response) JSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// errorBody is the error envelope the API uses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorMessage returns the server supplied error text, if the body has one.
func (r *Response) ErrorMessage() string {
	var body errorBody
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// Caller sends resolved requests.
type Caller interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TokenSource returns the bearer token for the current session, or "".
type TokenSource func(ctx context.Context) string

// Metrics receives per-request observations.
type Metrics interface {
	ObserveRequest(endpoint string, status int, duration time.Duration)
}

// BreakerConfig configures the circuit breaker in front of the API.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "api",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Breaker    BreakerConfig
	HTTPClient *http.Client
	Tokens     TokenSource
	Metrics    Metrics
	Logger     *zap.Logger
}

// Client is the HTTP implementation of Caller.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	tokens    TokenSource
	metrics   Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
}

var errServerStatus = errors.New("server error status")

// NewClient creates a client for the API at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("rpc")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	bc := cfg.Breaker
	if bc.Name == "" {
		bc = DefaultBreakerConfig()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "wayfinder/1.0"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		breaker:   newBreaker(bc, logger),
		tokens:    cfg.Tokens,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("wayfinder/rpc"),
		logger:    logger,
	}
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Do sends req. Transport failures and an open breaker are returned as
// errors; any HTTP status is returned as a Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "rpc."+req.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.endpoint", req.Endpoint),
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	resp, _ := out.(*Response)
	if err != nil && !errors.Is(err, errServerStatus) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(req.Endpoint, 0, time.Since(start))
		c.logger.Debug("Request failed",
			zap.String("endpoint", req.Endpoint),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !resp.OK {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	c.observe(req.Endpoint, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		OK:         httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(endpoint, status, d)
	}
}

// Call resolves params against ep, sends the request through caller and
// decodes the body into R. A non-success status becomes FetchFailed with the
// server message or fallback; transport and decoding problems become
// NetworkOrParse.
func Call[P, R any](ctx context.Context, caller Caller, ep Endpoint[P, R], params P, fallback string) (R, error) {
	var out R

	req, err := ep.Build(params)
	if err != nil {
		return out, apperrors.Validation(ep.Name, err)
	}

	resp, err := caller.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		return out, apperrors.NetworkOrParse(ep.Name, "request failed", err)
	}
	if !resp.OK {
		return out, apperrors.FetchFailed(ep.Name, resp.StatusCode, resp.ErrorMessage(), fallback)
	}
	if err := resp.JSON(&out); err != nil {
		return out, apperrors.NetworkOrParse(ep.Name, "malformed response body", err)
	}
	return out, nil
}
