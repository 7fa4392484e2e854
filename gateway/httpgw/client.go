package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/gateway"
)

// ErrUnavailable wraps transport failures and unexpected responses.
var ErrUnavailable = errors.New("httpgw: provider unavailable")

// Client implements gateway.Gateway over the HTTP API.
type Client struct {
	base *url.URL
	key  string
	http *http.Client
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient returns a client for the API rooted at baseURL. A nil httpClient
// uses a client with a 10s timeout.
func NewClient(baseURL, publishableKey string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpgw: invalid base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: u, key: publishableKey, http: httpClient}, nil
}

// CreateSession implements gateway.Gateway.
func (c *Client) CreateSession(ctx context.Context, identifier, secret string) (gateway.Session, error) {
	var sess gateway.Session
	err := c.do(ctx, http.MethodPost, "/v1/sessions", sessionRequest{Identifier: identifier, Password: secret}, &sess)
	return sess, err
}

// SetActiveSession implements gateway.Gateway.
func (c *Client) SetActiveSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/activate", nil, nil)
}

// CreateRegistration implements gateway.Gateway.
func (c *Client) CreateRegistration(ctx context.Context, reg gateway.Registration) (string, error) {
	var resp registrationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/registrations", reg, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PrepareVerification implements gateway.Gateway.
func (c *Client) PrepareVerification(ctx context.Context, registrationID string, strategy gateway.Strategy) error {
	return c.do(ctx, http.MethodPost, "/v1/registrations/"+url.PathEscape(registrationID)+"/prepare", prepareRequest{Strategy: strategy}, nil)
}

// AttemptVerification implements gateway.Gateway.
func (c *Client) AttemptVerification(ctx context.Context, registrationID, code string) (gateway.VerificationResult, error) {
	var res gateway.VerificationResult
	err := c.do(ctx, http.MethodPost, "/v1/registrations/"+url.PathEscape(registrationID)+"/attempt", attemptRequest{Code: code}, &res)
	return res, err
}

// ResumeSession implements gateway.Gateway.
func (c *Client) ResumeSession(ctx context.Context, token string) (gateway.Session, error) {
	var sess gateway.Session
	err := c.do(ctx, http.MethodPost, "/v1/sessions/resume", resumeRequest{Token: token}, &sess)
	return sess, err
}

// EndSession implements gateway.Gateway.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set(PublishableKeyHeader, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusUnprocessableEntity:
		var env errorEnvelope
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err == nil && len(env.Errors) > 0 {
			return env.Errors
		}
	}
	return fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, path, resp.StatusCode)
}
