// Package apiclient talks to the ticketing backend on behalf of a dashboard
// session: it attaches the bearer token, retries transient failures, and
// renews expired access tokens through a process-wide single-flight refresh.
package apiclient

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

	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/metrics"
	"helpdesk-dashboard/internal/pkg/redirect"
	"helpdesk-dashboard/internal/pkg/tokenstore"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// Config for the backend connection.
type Config struct {
	BaseURL        string
	Timeout        time.Duration // per attempt
	Retries        uint64        // extra attempts for idempotent calls
	RetryInterval  time.Duration // first backoff step
	RefreshTimeout time.Duration
	RotationGrace  time.Duration
}

// Backend holds the process-wide pieces shared by every session's client.
type Backend struct {
	cfg       Config
	http      *http.Client
	refresher *Refresher
	logger    *zap.Logger
}

// NewBackend builds the shared backend connection. rotation may be nil.
func NewBackend(cfg Config, httpClient *http.Client, rotation RotationCache, m *metrics.Metrics, logger *zap.Logger) *Backend {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Backend{
		cfg:       cfg,
		http:      httpClient,
		refresher: NewRefresher(cfg, httpClient, rotation, m, logger),
		logger:    logger,
	}
}

// Refresher exposes the shared single-flight refresher.
func (b *Backend) Refresher() *Refresher {
	return b.refresher
}

// Client binds the backend to one session's token store and redirect bus.
func (b *Backend) Client(tokens tokenstore.Store, bus *redirect.Bus) *Client {
	return &Client{backend: b, tokens: tokens, bus: bus}
}

// Client is a session-scoped backend client.
type Client struct {
	backend *Backend
	tokens  tokenstore.Store
	bus     *redirect.Bus
}

type call struct {
	method      string
	path        string
	skipRefresh bool
	anonymous   bool
	bearer      string
}

// CallOption adjusts a single call.
type CallOption func(*call)

// WithoutRefresh disables 401 handling for the call.
func WithoutRefresh() CallOption {
	return func(c *call) { c.skipRefresh = true }
}

// WithBearer sends token instead of the stored access token. 401 handling is
// disabled because the call is not tied to the stored credentials.
func WithBearer(token string) CallOption {
	return func(c *call) {
		c.bearer = token
		c.skipRefresh = true
	}
}

// Anonymous sends no Authorization header.
func Anonymous() CallOption {
	return func(c *call) {
		c.anonymous = true
		c.skipRefresh = true
	}
}

type result struct {
	status int
	body   []byte
}

// Do performs method on path, encoding body as JSON and decoding a 2xx answer
// into out. A 401 triggers one token renewal and one replay.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	cl := call{method: method, path: path}
	for _, opt := range opts {
		opt(&cl)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	bearer := cl.bearer
	if bearer == "" && !cl.anonymous {
		bearer, _ = c.tokens.AccessToken()
	}

	res, err := c.roundTrip(ctx, cl, payload, bearer)
	if err != nil {
		return err
	}

	if res.status == http.StatusUnauthorized && !cl.skipRefresh {
		renewed, err := c.renew(ctx, bearer)
		if err != nil {
			return err
		}
		// One replay only; a second 401 is returned as-is.
		if res, err = c.roundTrip(ctx, cl, payload, renewed); err != nil {
			return err
		}
	}

	return decode(res, out)
}

// renew returns an access token to replay with. If the store already holds a
// different token than the one the request sent, another caller refreshed
// and no new refresh is needed.
func (c *Client) renew(ctx context.Context, sent string) (string, error) {
	if current, ok := c.tokens.AccessToken(); ok && current != sent {
		return current, nil
	}

	refreshToken, ok := c.tokens.RefreshToken()
	if !ok {
		c.expire()
		return "", xerrors.Wrap(xerrors.ErrSessionExpired, "no refresh token")
	}

	pair, err := c.backend.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, xerrors.ErrSessionExpired) {
			c.expire()
		}
		return "", err
	}

	c.tokens.SetTokens(pair)
	return pair.AccessToken, nil
}

func (c *Client) expire() {
	c.tokens.Clear()
	if c.bus != nil {
		c.bus.EmitRedirectToLogin()
	}
}

func (c *Client) roundTrip(ctx context.Context, cl call, payload []byte, bearer string) (*result, error) {
	var last *result
	op := func() error {
		res, err := c.attempt(ctx, cl, payload, bearer)
		if err != nil {
			last = nil
			if ctx.Err() != nil || !idempotent(cl.method) {
				return backoff.Permanent(err)
			}
			return err
		}
		last = res
		if transient(res.status) && idempotent(cl.method) {
			return fmt.Errorf("transient status %d", res.status)
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.backend.cfg.RetryInterval
	eb.MaxInterval = 10 * c.backend.cfg.RetryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.backend.cfg.Retries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.backend.logger.Debug("retrying backend call",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if last != nil {
		// Transient statuses that outlived the retries surface as APIErrors.
		return last, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w: %s %s: %v", xerrors.ErrUnavailable, cl.method, cl.path, err)
}

func (c *Client) attempt(ctx context.Context, cl call, payload []byte, bearer string) (*result, error) {
	actx, cancel := context.WithTimeout(ctx, c.backend.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(actx, cl.method, c.backend.cfg.BaseURL+cl.path, body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.backend.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return &result{status: resp.StatusCode, body: data}, nil
}

func decode(res *result, out any) error {
	if res.status < 200 || res.status > 299 {
		return &xerrors.APIError{Status: res.status, Message: messageOf(res.body)}
	}
	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func messageOf(body []byte) string {
	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	switch {
	case msg.Message != "":
		return msg.Message
	case msg.Error != "":
		return msg.Error
	default:
		return msg.Detail
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func transient(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}
