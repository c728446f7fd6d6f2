// Package apiclient consumes the SecureDeal marketplace REST API. Request
// bodies are form-encoded, authenticated calls carry the bearer token from
// the session, and every call runs under an explicit timeout.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthorized signals an expired or missing token. The caller is
// expected to clear the session and force a fresh login.
var ErrUnauthorized = errors.New("apiclient: unauthorized")

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
	tokens  TokenSource
	logger  *zap.Logger
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		timeout: timeout,
		tokens:  tokens,
		logger:  logger,
	}
}

// apiEnvelope covers the common response shapes: {data}, {error}, {message}.
type apiEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// do issues a form-encoded request and decodes the response body into out
// when out is non-nil. out receives the full body, not just the data field,
// because login returns {jwt, user} at the top level.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, auth bool, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if auth {
		token := c.tokens.Token()
		if token == "" {
			return ErrUnauthorized
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env apiEnvelope
		if json.Unmarshal(respBody, &env) == nil {
			if env.Error != "" {
				return fmt.Errorf("%s: %s", path, env.Error)
			}
			if env.Message != "" {
				return fmt.Errorf("%s: %s", path, env.Message)
			}
		}
		return fmt.Errorf("%s: http status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

// postData issues a POST and unwraps the {data} field into out.
func (c *Client) postData(ctx context.Context, path string, form url.Values, auth bool, out any) error {
	var env apiEnvelope
	if err := c.do(ctx, http.MethodPost, path, form, auth, &env); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: empty data field", path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data %s: %w", path, err)
	}
	return nil
}
