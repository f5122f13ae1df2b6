// Package apiclient is a Go client for the learning-platform HTTP API.
// Transport failures and non-2xx responses are returned as *Error, so
// callers branch on IsUnexpected, IsValidationError and error codes instead
// of parsing bodies.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

const adminKeyHeader = "X-ADMIN-KEY"

// Client calls the learning-platform API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialStore
	logger      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentials sets the admin key source. Without it admin calls send
// an empty key.
func WithCredentials(cs CredentialStore) Option {
	return func(c *Client) { c.credentials = cs }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	admin  bool
}

// do performs one call and decodes a 2xx body into out (when non-nil).
// A 304 carries no body and leaves out untouched.
// It is the only place that clears credentials.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.admin {
		key := ""
		if c.credentials != nil {
			key = c.credentials.AdminKey()
		}
		req.Header.Set(adminKeyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("API request failed", zap.String("method", r.method), zap.String("path", r.path), zap.Error(err))
		return NetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NetworkError(fmt.Errorf("read response: %w", err))
	}

	if failed(resp.StatusCode) {
		apiErr := Normalize(resp, raw)
		if c.shouldClearCredentials(apiErr, r.admin) {
			c.credentials.ClearAdminKey()
			c.logger.Info("Admin key rejected; cleared", zap.String("trace_id", apiErr.TraceID))
		}
		if apiErr.Unexpected() {
			c.logger.Warn("API returned unexpected error",
				zap.String("path", r.path),
				zap.Int("status", apiErr.Status),
				zap.String("code", apiErr.Code),
				zap.String("trace_id", apiErr.TraceID),
			)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// failed reports whether status is neither 2xx nor 304 Not Modified.
func failed(status int) bool {
	if status == http.StatusNotModified {
		return false
	}
	return status < 200 || status > 299
}

// shouldClearCredentials matches any 401, and on admin calls the server's
// own admin-key rejection, which is sent as 400 UNAUTHORIZED.
func (c *Client) shouldClearCredentials(e *Error, admin bool) bool {
	if c.credentials == nil {
		return false
	}
	if e.Status == http.StatusUnauthorized {
		return true
	}
	return admin && e.Status == http.StatusBadRequest && e.Code == codeUnauthorized
}

func pageValues(q domain.PageQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

func (c *Client) Register(ctx context.Context, name, phone string) (*domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/users/register",
		body:   domain.RegisterRequest{Name: name, Phone: phone},
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Login(ctx context.Context, phone string) (*domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   domain.LoginRequest{Phone: phone},
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, id int) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/" + strconv.Itoa(id)}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/categories"}, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) CategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	var cat domain.Category
	path := "/api/categories/by-name/" + url.PathEscape(name)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) CreatePrompt(ctx context.Context, req domain.CreatePromptRequest) (*domain.Prompt, error) {
	var p domain.Prompt
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/prompts", body: req}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) History(ctx context.Context, userID int) ([]domain.Prompt, error) {
	var history []domain.Prompt
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/prompts/history",
		query:  url.Values{"userId": {strconv.Itoa(userID)}},
	}, &history)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Preview is the decoded body of GET /api/ai/test.
type Preview struct {
	Topic  string `json:"topic"`
	Prompt string `json:"prompt"`
	Lesson string `json:"lesson"`
}

func (c *Client) Preview(ctx context.Context, topic, prompt string) (*Preview, error) {
	var p Preview
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/ai/test",
		query:  url.Values{"topic": {topic}, "prompt": {prompt}},
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AdminUsers(ctx context.Context, q domain.PageQuery) (*domain.Page[domain.User], error) {
	var page domain.Page[domain.User]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/admin/users",
		query:  pageValues(q),
		admin:  true,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) AdminUserPrompts(ctx context.Context, userID int, q domain.PageQuery) (*domain.Page[domain.Prompt], error) {
	var page domain.Page[domain.Prompt]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/admin/users/" + strconv.Itoa(userID) + "/prompts",
		query:  pageValues(q),
		admin:  true,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DatabaseHealthy reports the server's view of its store.
func (c *Client) DatabaseHealthy(ctx context.Context) (bool, error) {
	var out struct {
		DB string `json:"db"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/health/db"}, &out); err != nil {
		return false, err
	}
	return out.DB == "OK", nil
}
