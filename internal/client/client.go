// Package client talks to the IdleAssets API on behalf of one signed-in user.
// It is the identity provider, the rental transition authority and the feed
// source for messages and notifications.
package client

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
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"idleassets/api/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Message is the server's {"error"} text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ErrNotSignedIn is returned by calls that need a credential when none is held.
var ErrNotSignedIn = errors.New("client: not signed in")

// AuthEvent describes a change of the signed-in principal.
type AuthEvent string

const (
	SignedIn  AuthEvent = "SIGNED_IN"
	SignedOut AuthEvent = "SIGNED_OUT"
)

// AuthListener is called after every auth state change. user is nil on sign-out.
type AuthListener func(event AuthEvent, user *models.User)

// Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      *models.User

	listenersMu sync.Mutex
	listeners   map[int]AuthListener
	nextID      int
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a client for the API rooted at baseURL, for example
// "https://api.idleassets.example.com".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		dialer:     websocket.DefaultDialer,
		listeners:  make(map[int]AuthListener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CurrentUser returns the signed-in principal, or nil.
func (c *Client) CurrentUser() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil || c.expiredLocked() {
		return nil
	}
	u := *c.user
	return &u
}

// CurrentCredential returns the bearer token of the signed-in principal.
func (c *Client) CurrentCredential() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || c.expiredLocked() {
		return "", false
	}
	return c.token, true
}

func (c *Client) expiredLocked() bool {
	return !c.expiresAt.IsZero() && time.Now().After(c.expiresAt)
}

// OnAuthStateChange registers fn for auth changes and returns a function
// that removes it.
func (c *Client) OnAuthStateChange(fn AuthListener) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) emit(event AuthEvent, user *models.User) {
	c.listenersMu.Lock()
	fns := make([]AuthListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(event, user)
	}
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// SignIn exchanges credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signin", body, &resp, false); err != nil {
		return nil, err
	}
	return c.setSession(resp), nil
}

// SignUp creates an account and signs in as it.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*models.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", body, &resp, false); err != nil {
		return nil, err
	}
	return c.setSession(resp), nil
}

func (c *Client) setSession(resp authResponse) *models.User {
	user := resp.User
	c.mu.Lock()
	c.token = resp.Token
	c.expiresAt = resp.ExpiresAt
	c.user = &user
	c.mu.Unlock()

	c.emit(SignedIn, &user)
	u := user
	return &u
}

// SignOut revokes the credential on the server and forgets it locally. The
// local session is cleared even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if _, ok := c.CurrentCredential(); ok {
		err = c.do(ctx, http.MethodPost, "/v1/auth/signout", nil, nil, true)
	}

	c.mu.Lock()
	hadUser := c.user != nil
	c.token = ""
	c.expiresAt = time.Time{}
	c.user = nil
	c.mu.Unlock()

	if hadUser {
		c.emit(SignedOut, nil)
	}
	return err
}

// GetProfile loads the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/profile", nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListRentals loads the caller's rentals for role "renting" or "lending".
func (c *Client) ListRentals(ctx context.Context, role string) ([]models.Rental, error) {
	var rentals []models.Rental
	path := "/v1/rentals?role=" + url.QueryEscape(role)
	if err := c.do(ctx, http.MethodGet, path, nil, &rentals, true); err != nil {
		return nil, err
	}
	return rentals, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, ok := c.CurrentCredential()
		if !ok {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
