package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Client is a thin SDK over the consultation backend HTTP API.
// It holds the bearer token issued at login and attaches it to every
// subsequent request. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu           sync.RWMutex
	token        string
	refreshToken string
	user         *User
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken seeds an existing access token, skipping Login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New constructs a Client against the given backend base URL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		panic("baseURL cannot be empty")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wrapTransportWithBearer()
	return c
}

// wrapTransportWithBearer wraps the HTTP transport to attach the current
// access token as an Authorization header on every request.
func (c *Client) wrapTransportWithBearer() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &bearerTransport{base: base, token: c.currentToken}
}

// bearerTransport adds "Authorization: Bearer <token>" when a token is set.
// The token is resolved per request so a Login after construction takes effect.
type bearerTransport struct {
	base  http.RoundTripper
	token func() string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := t.token()
	if tok == "" {
		return t.base.RoundTrip(req)
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(cloned)
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// CurrentUser returns the user from the last Register or Login, if any.
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

type authResponse struct {
	Message      string `json:"message"`
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account and stores the issued tokens on the client.
func (c *Client) Register(ctx context.Context, username, email, password string, profile *Profile) (*AuthResult, error) {
	body := map[string]interface{}{
		"username": username,
		"email":    email,
		"password": password,
	}
	if profile != nil {
		body["profile"] = profile
	}
	var out authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/register", body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	c.adoptAuth(out)
	return &AuthResult{User: out.User, Token: out.Token, RefreshToken: out.RefreshToken}, nil
}

// Login authenticates and stores the issued tokens on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/login", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.adoptAuth(out)
	return &AuthResult{User: out.User, Token: out.Token, RefreshToken: out.RefreshToken}, nil
}

func (c *Client) adoptAuth(out authResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = out.Token
	c.refreshToken = out.RefreshToken
	u := out.User
	c.user = &u
}

// Logout revokes the stored refresh token and clears local credentials.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()

	body := map[string]string{"refreshToken": refresh}
	err := c.doJSON(ctx, http.MethodPost, "/api/users/logout", body, http.StatusOK, nil)

	c.mu.Lock()
	c.token = ""
	c.refreshToken = ""
	c.user = nil
	c.mu.Unlock()
	return err
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/profile", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateProfile overlays the populated fields onto the stored profile.
// Pass a nil username to leave it unchanged.
func (c *Client) UpdateProfile(ctx context.Context, username *string, profile *Profile) (*User, error) {
	body := map[string]interface{}{}
	if username != nil {
		body["username"] = *username
	}
	if profile != nil {
		body["profile"] = profile
	}
	var out struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/users/profile", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// History returns one page of the user's completed consultations.
func (c *Client) History(ctx context.Context, page, limit int) (*HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/conversations/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out HistoryPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON performs one request and decodes the response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError maps an error response to the SDK error symbols, keeping the
// backend's message when it sent one.
func statusError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return fmt.Errorf("request failed: status %d: %s", resp.StatusCode, msg)
	}
}
