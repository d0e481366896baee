// Package api is the thin HTTP layer over the finance REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     token.Store
	refreshes  *singleflight.Group
	logger     *applog.Logger
}

// NewClient builds an unbound client. Use WithTokens for calls on behalf of a browser.
func NewClient(baseURL string, httpClient *http.Client, logger *applog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		refreshes:  &singleflight.Group{},
		logger:     logger.WithComponent(applog.ComponentAPI),
	}
}

// WithTokens returns a copy of c that authenticates with tokens.
func (c *Client) WithTokens(tokens token.Store) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	authed bool
}

// TokenPair is what login and refresh hand back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (p *TokenPair) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccessToken       string `json:"accessToken"`
		RefreshToken      string `json:"refreshToken"`
		AccessTokenSnake  string `json:"access_token"`
		RefreshTokenSnake string `json:"refresh_token"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.AccessToken = firstNonEmpty(raw.AccessToken, raw.AccessTokenSnake)
	p.RefreshToken = firstNonEmpty(raw.RefreshToken, raw.RefreshTokenSnake)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var sent string
	if req.authed {
		access, ok := c.accessToken(ctx)
		if !ok {
			return ErrNotAuthenticated
		}
		sent = access
	}

	status, body, err := c.send(ctx, req, payload, sent)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && req.authed {
		if next, ok := c.renewedToken(ctx, sent); ok {
			status, body, err = c.send(ctx, req, payload, next)
			if err != nil {
				return err
			}
		}
	}

	if status < 200 || status > 299 {
		return newError(status, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decodeBody(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

// send performs one round trip, authenticating with bearer when it is set.
func (c *Client) send(ctx context.Context, req request, payload []byte, bearer string) (int, []byte, error) {
	fullURL := c.baseURL + req.path
	if len(req.query) > 0 {
		fullURL += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, fullURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	if id := requestIDFrom(ctx); id != "" {
		httpReq.Header.Set(applog.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s response: %w", req.method, req.path, err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) accessToken(ctx context.Context) (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	return c.tokens.Get(ctx, token.AccessToken)
}

// renewedToken returns an access token newer than sent. A pair rotated by
// another caller while this request was in flight is used as is; otherwise
// the stored refresh token is exchanged.
func (c *Client) renewedToken(ctx context.Context, sent string) (string, bool) {
	if current, ok := c.accessToken(ctx); ok && current != sent {
		return current, true
	}
	if err := c.refresh(ctx); err != nil {
		return "", false
	}
	return c.accessToken(ctx)
}

// refresh swaps the stored refresh token for a new pair. Concurrent callers
// holding the same refresh token share one backend call.
func (c *Client) refresh(ctx context.Context) error {
	if c.tokens == nil {
		return ErrRefreshFailed
	}
	refreshToken, ok := c.tokens.Get(ctx, token.RefreshToken)
	if !ok {
		return ErrRefreshFailed
	}

	_, err, _ := c.refreshes.Do(refreshToken, func() (any, error) {
		var pair TokenPair
		status, body, err := c.send(ctx, request{
			method: http.MethodPost,
			path:   "/auth/refresh",
		}, mustJSON(map[string]string{"refreshToken": refreshToken}), "")
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, newError(status, body)
		}
		if err := decodeBody(body, &pair); err != nil {
			return nil, err
		}
		if pair.AccessToken == "" {
			return nil, ErrEmptyTokens
		}
		c.tokens.Set(ctx, token.AccessToken, pair.AccessToken)
		if pair.RefreshToken != "" {
			c.tokens.Set(ctx, token.RefreshToken, pair.RefreshToken)
		}
		return nil, nil
	})
	if err != nil {
		c.logger.InfoContext(ctx, "token refresh failed",
			applog.FieldOperation, applog.OpRefresh, applog.FieldError, err.Error())
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	c.logger.DebugContext(ctx, "access token refreshed", applog.FieldOperation, applog.OpRefresh)
	return nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// decodeBody accepts both bare payloads and {"status":..,"data":..} envelopes.
func decodeBody(body []byte, out any) error {
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status != "" && len(envelope.Data) > 0 {
		body = envelope.Data
	}
	return json.Unmarshal(body, out)
}

type requestIDKey struct{}

// WithRequestID forwards id to the backend on calls made with the returned context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return errors.New(resp.Status)
	}
	return nil
}
