// Package apiclient talks to the /aiapps listing API over HTTP.
package apiclient

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

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/utils"
	"github.com/MrSnakeDoc/aimarket/internal/version"
)

// DefaultTimeout bounds every request made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

// Client is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// New returns a client for the API rooted at baseURL (ex: http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  version.UserAgent("aimarketctl"),
	}
}

// APIError is a non-2xx answer. It unwraps to the matching domain sentinel
// so callers can use errors.Is(err, domain.ErrNotFound) and friends.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case http.StatusServiceUnavailable:
		return domain.ErrStorageUnavailable
	default:
		return nil
	}
}

// List returns the public (active) listings.
func (c *Client) List(ctx context.Context) ([]*domain.Listing, error) {
	var out []*domain.Listing
	if err := c.do(ctx, http.MethodGet, "/aiapps", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every listing. Needs an allowed admin address.
func (c *Client) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	var out []*domain.Listing
	if err := c.do(ctx, http.MethodGet, "/admin/aiapps", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.do(ctx, http.MethodGet, "/aiapps/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create submits a listing. The server stores it as pending.
func (c *Client) Create(ctx context.Context, l domain.Listing) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.do(ctx, http.MethodPost, "/aiapps", l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.do(ctx, http.MethodPut, "/aiapps/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/aiapps/"+url.PathEscape(id), nil, nil)
}

// Approve makes a listing public.
func (c *Client) Approve(ctx context.Context, id, approvedBy string) (*domain.Listing, error) {
	var out domain.Listing
	body := map[string]string{"approvedBy": approvedBy}
	if err := c.do(ctx, http.MethodPost, "/aiapps/"+url.PathEscape(id)+"/approve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else if s := strings.TrimSpace(string(data)); s != "" {
		apiErr.Message = s
	}
	return apiErr
}

// IsAPIError reports whether err carries an HTTP answer and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
