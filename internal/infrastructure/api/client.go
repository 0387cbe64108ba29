package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/infrastructure/resilience"
	"github.com/hadassahlevi/tiktax-client/internal/observability/metrics"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultSlowThreshold = 3 * time.Second

	refreshPath = "/auth/refresh"

	maxErrorBodyBytes = 2048
)

// Config tunes the transport. Zero values fall back to defaults.
type Config struct {
	Timeout        time.Duration
	SlowThreshold  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Breaker        resilience.BreakerConfig
}

// Client is the single request pipeline every remote call goes
// through. It attaches the current bearer credential, classifies
// failures into domain error kinds, and on a 401 performs exactly one
// coalesced refresh followed by one replay of the original request.
//
// Retry discipline: nothing but the 401 case is ever retried here.
// Redelivery of side-effecting requests is bounded to at most one, and
// uploads carry an idempotency key to tolerate even that.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	session       *Session
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[any]
	metrics       *metrics.ClientMetrics
	slowThreshold time.Duration
}

func NewClient(baseURL string, session *Session, cfg Config, m *metrics.ClientMetrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	slowThreshold := cfg.SlowThreshold
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		session:       session,
		limiter:       limiter,
		metrics:       m,
		slowThreshold: slowThreshold,
	}
	if cfg.Breaker.Enabled {
		c.breaker = resilience.NewBreaker("tiktax-remote", cfg.Breaker, breakerFailure)
	}
	return c
}

// request is a fully buffered outbound call. The body is a byte slice
// so the 401 replay resends identical bytes.
type request struct {
	operation   string
	method      string
	path        string
	query       url.Values
	header      http.Header
	contentType string
	body        []byte
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.WrapError(domain.ErrNetworkUnavailable, req.operation, err)
		}
	}

	start := time.Now()
	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() (any, error) {
			return nil, c.dispatch(ctx, req, out, false)
		})
		if resilience.IsCircuitOpen(err) {
			err = domain.WrapError(domain.ErrServiceUnavailable, req.operation, err)
		}
	} else {
		err = c.dispatch(ctx, req, out, false)
	}

	c.metrics.RecordRequest(req.operation, errorClass(err), time.Since(start))
	return err
}

// dispatch performs one attempt plus, for a first 401, the coalesced
// refresh and a single replay.
func (c *Client) dispatch(ctx context.Context, req request, out any, retried bool) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.requestURL(req), bytes.NewReader(req.body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.operation, err)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	accessToken := c.session.AccessToken()
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.WrapError(domain.ErrNetworkUnavailable, req.operation, err)
	}
	defer resp.Body.Close()

	if elapsed := time.Since(start); elapsed > c.slowThreshold {
		slog.Warn("slow_response",
			"operation", req.operation,
			"method", req.method,
			"path", req.path,
			"duration_ms", float64(elapsed.Microseconds())/1000.0,
		)
		c.metrics.RecordSlowResponse(req.operation)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", req.operation, err)
		}
		return nil
	}

	statusErr := &HTTPStatusError{
		Operation:  req.operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       readErrorBody(resp.Body),
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if retried {
			// The refreshed token was rejected too; the session is
			// unusable for any future request.
			c.session.Clear()
			return domain.WrapError(domain.ErrAuthExpired, req.operation, statusErr)
		}
		if err := c.session.Refresh(ctx, accessToken, c.exchangeRefresh); err != nil {
			return domain.WrapError(domain.ErrAuthExpired, req.operation, err)
		}
		return c.dispatch(ctx, req, out, true)
	}

	kind := classifyStatus(resp.StatusCode)
	if domain.IsKind(kind, domain.ErrAccessDenied) {
		slog.Warn("access_denied", "operation", req.operation, "path", req.path)
	}
	return domain.WrapError(kind, req.operation, statusErr)
}

// exchangeRefresh performs the refresh-token exchange. It bypasses the
// breaker and the bearer attach: the expired access token must not ride
// along, and a tripped breaker must not block re-authentication.
func (c *Client) exchangeRefresh(ctx context.Context, refreshToken string) (domain.Credentials, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("marshal refresh request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("create refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordTokenRefresh("network_error")
		return domain.Credentials{}, fmt.Errorf("refresh exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordTokenRefresh("rejected")
		return domain.Credentials{}, &HTTPStatusError{
			Operation:  "refresh",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       readErrorBody(resp.Body),
		}
	}

	var creds domain.Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		c.metrics.RecordTokenRefresh("decode_error")
		return domain.Credentials{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if !creds.Valid() {
		c.metrics.RecordTokenRefresh("rejected")
		return domain.Credentials{}, fmt.Errorf("refresh response missing tokens")
	}
	c.metrics.RecordTokenRefresh("ok")
	return creds, nil
}

func (c *Client) requestURL(req request) string {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	return c.send(ctx, request{
		operation: operation,
		method:    http.MethodGet,
		path:      path,
		query:     query,
	}, out)
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.send(ctx, request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		contentType: "application/json",
		body:        body,
	}, out)
}

func (c *Client) putJSON(ctx context.Context, operation, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.send(ctx, request{
		operation:   operation,
		method:      http.MethodPut,
		path:        path,
		contentType: "application/json",
		body:        body,
	}, out)
}

func (c *Client) delete(ctx context.Context, operation, path string) error {
	return c.send(ctx, request{
		operation: operation,
		method:    http.MethodDelete,
		path:      path,
	}, nil)
}

func (c *Client) postRaw(ctx context.Context, operation, path, contentType string, header http.Header, body []byte, out any) error {
	return c.send(ctx, request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		header:      header,
		contentType: contentType,
		body:        body,
	}, out)
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	return strings.TrimSpace(string(body))
}
