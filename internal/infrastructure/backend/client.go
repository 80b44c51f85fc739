package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

// Client implements domain.BackendClient against the REST auth backend.
// It performs opaque HTTP round-trips; retry and backoff are deliberately
// absent, each call fires exactly once.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	client := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// LoginURL implements domain.BackendClient.
func (c *Client) LoginURL(ctx context.Context, redirectURI string) (*domain.LoginTarget, error) {
	var out domain.LoginTarget
	query := url.Values{"redirect_uri": {redirectURI}}
	if err := c.do(ctx, http.MethodGet, "/auth/login-url", query, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeToken implements domain.BackendClient.
func (c *Client) ExchangeToken(ctx context.Context, idpToken string) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	body := map[string]string{"access_token": idpToken}
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeCallback implements domain.BackendClient.
func (c *Client) ExchangeCallback(ctx context.Context, code, redirectURI, state string) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	body := map[string]string{"code": code, "redirect_uri": redirectURI, "state": state}
	if err := c.do(ctx, http.MethodPost, "/auth/callback", nil, "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh implements domain.BackendClient. The refresh credential rides as
// the bearer token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	var out domain.RefreshResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, refreshToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate implements domain.BackendClient.
func (c *Client) Validate(ctx context.Context, accessToken string) (*domain.ValidateResult, error) {
	var out domain.ValidateResult
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser implements domain.BackendClient.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*domain.User, []string, error) {
	var out struct {
		User        *domain.User `json:"user"`
		Permissions []string     `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, accessToken, nil, &out); err != nil {
		return nil, nil, err
	}
	return out.User, out.Permissions, nil
}

// Permissions implements domain.BackendClient. The backend answers with a
// capability-to-bool map; only granted capabilities survive the flatten.
func (c *Client) Permissions(ctx context.Context, accessToken string) ([]string, error) {
	var out struct {
		Permissions map[string]bool `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/permissions", nil, accessToken, nil, &out); err != nil {
		return nil, err
	}
	granted := make([]string, 0, len(out.Permissions))
	for perm, ok := range out.Permissions {
		if ok {
			granted = append(granted, perm)
		}
	}
	sort.Strings(granted)
	return granted, nil
}

// CheckSession implements domain.BackendClient.
func (c *Client) CheckSession(ctx context.Context, accessToken string) (*domain.SessionCheck, error) {
	var out domain.SessionCheck
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout implements domain.BackendClient. The response body is ignored.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, accessToken, nil, nil)
}

// SearchUsers implements domain.BackendClient.
func (c *Client) SearchUsers(ctx context.Context, accessToken, query string, limit int, excludeSelf bool) (*domain.UserSearchResult, error) {
	var out domain.UserSearchResult
	q := url.Values{
		"q":            {query},
		"limit":        {strconv.Itoa(limit)},
		"exclude_self": {strconv.FormatBool(excludeSelf)},
	}
	if err := c.do(ctx, http.MethodGet, "/auth/users/search", q, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.BackendError{
			Op:     method + " " + path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

var _ domain.BackendClient = (*Client)(nil)
