package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const defaultMaxBodyBytes = 2 << 20

var (
	// ErrAuthentication means the portal did not issue a session cookie, which the portal
	// does for wrong credentials.
	ErrAuthentication = errors.New("portal authentication failed")
	// ErrNetwork covers transport failures and non-success statuses.
	ErrNetwork = errors.New("portal request failed")
)

// Config describes the portal endpoints and wire details.
type Config struct {
	BaseURL       string
	LoginPath     string
	UserInfoPath  string
	GradePath     string
	SessionCookie string
	Charset       string
	Timeout       time.Duration
	MaxBodyBytes  int64
}

// Session carries the cookies issued at login.
type Session struct {
	Cookies []*http.Cookie
}

// Client issues the fixed portal requests.
type Client struct {
	cfg     Config
	baseURL string
	enc     encoding.Encoding
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its redirect policy is overridden.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.http = &clone
		}
	}
}

// NewClient validates cfg and builds a client. Redirects are never followed so login
// cookies stay observable.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("portal: invalid base url %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.SessionCookie) == "" {
		return nil, errors.New("portal: session cookie name required")
	}
	charset := cfg.Charset
	if charset == "" {
		charset = "euc-kr"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("portal: unsupported charset %q: %w", charset, err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	c := &Client{cfg: cfg, baseURL: base, enc: enc, http: &http.Client{Timeout: cfg.Timeout}}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c, nil
}

// Authenticate posts the login form and returns the issued session.
func (c *Client) Authenticate(ctx context.Context, id, password string) (*Session, error) {
	form := url.Values{}
	form.Set("id", id)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.LoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build login request: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: login status %d", ErrNetwork, resp.StatusCode)
	}

	cookies := resp.Cookies()
	for _, ck := range cookies {
		if ck.Name == c.cfg.SessionCookie && ck.Value != "" {
			return &Session{Cookies: cookies}, nil
		}
	}
	return nil, ErrAuthentication
}

// FetchPage GETs path with the session cookies and returns the body decoded to UTF-8.
func (c *Client) FetchPage(ctx context.Context, session *Session, path string) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: no session", ErrNetwork)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %v", ErrNetwork, path, err)
	}
	for _, ck := range session.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: status %d", ErrNetwork, path, resp.StatusCode)
	}

	decoded := transform.NewReader(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes), c.enc.NewDecoder())
	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetwork, path, err)
	}
	return body, nil
}

// FetchUserInfo fetches the page holding the student's name and declared tracks.
func (c *Client) FetchUserInfo(ctx context.Context, session *Session) ([]byte, error) {
	return c.FetchPage(ctx, session, c.cfg.UserInfoPath)
}

// FetchGrades fetches the grade history page.
func (c *Client) FetchGrades(ctx context.Context, session *Session) ([]byte, error) {
	return c.FetchPage(ctx, session, c.cfg.GradePath)
}
