package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/subhamkb4/Crunchyroll-api/internal/observability"
)

const (
	DefaultBaseURL = "https://beta.crunchyroll.com"
	DefaultTimeout = 30 * time.Second

	maxAccountPageBytes = 2 << 20
)

var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
}

// Session is one cookie-carrying browsing session against the target site.
// Every check runs on a fresh session and must close it on all exit paths.
type Session interface {
	Get(ctx context.Context, rawURL string, followRedirects bool) (*http.Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error)
	Close()
}

type SessionFactory interface {
	NewSession() (Session, error)
}

type httpSessionFactory struct {
	timeout time.Duration
}

func NewSessionFactory(timeout time.Duration) SessionFactory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &httpSessionFactory{timeout: timeout}
}

func (f *httpSessionFactory) NewSession() (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}
	return &httpSession{
		client: &http.Client{
			Jar:     jar,
			Timeout: f.timeout,
		},
	}, nil
}

type httpSession struct {
	client *http.Client
}

func (s *httpSession) Get(ctx context.Context, rawURL string, followRedirects bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyBrowserHeaders(req)

	// A session serves exactly one sequential check, so flipping the
	// redirect policy between calls is safe.
	if followRedirects {
		s.client.CheckRedirect = nil
	} else {
		s.client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return s.client.Do(req)
}

func (s *httpSession) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	applyBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	s.client.CheckRedirect = nil
	return s.client.Do(req)
}

func (s *httpSession) Close() {
	s.client.CloseIdleConnections()
}

func applyBrowserHeaders(req *http.Request) {
	for name, value := range browserHeaders {
		req.Header.Set(name, value)
	}
}

// Checker runs the scripted login flow: fetch the login page, submit the
// credentials, then probe the account page. Access is inferred solely from
// whether the account page answers 200 without redirecting; the login POST
// response is deliberately not inspected.
type Checker struct {
	baseURL  string
	sessions SessionFactory
	logger   *observability.Logger
}

func New(baseURL string, sessions SessionFactory, logger *observability.Logger) *Checker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Checker{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		logger:   logger,
	}
}

func (c *Checker) Check(ctx context.Context, email, password string) CheckResult {
	session, err := c.sessions.NewSession()
	if err != nil {
		return formatFailure(email, "Check failed: "+err.Error())
	}
	defer session.Close()

	return c.runCheck(ctx, session, email, password)
}

func (c *Checker) runCheck(ctx context.Context, session Session, email, password string) CheckResult {
	c.logger.Info("check_start", map[string]any{"email": email})

	loginURL := c.baseURL + "/login"

	loginResp, err := session.Get(ctx, loginURL, true)
	if err != nil {
		return formatFailure(email, failureMessage(err))
	}
	drainAndClose(loginResp)
	if loginResp.StatusCode != http.StatusOK {
		return formatFailure(email, fmt.Sprintf("Login page unavailable: %d", loginResp.StatusCode))
	}

	form := url.Values{
		"username": {email},
		"password": {password},
	}
	postResp, err := session.PostForm(ctx, loginURL, form)
	if err != nil {
		return formatFailure(email, failureMessage(err))
	}
	drainAndClose(postResp)

	accountResp, err := session.Get(ctx, c.baseURL+"/account", false)
	if err != nil {
		return formatFailure(email, failureMessage(err))
	}
	defer accountResp.Body.Close()

	if accountResp.StatusCode != http.StatusOK {
		return formatFailure(email, "Invalid credentials or account not found")
	}

	body, err := io.ReadAll(io.LimitReader(accountResp.Body, maxAccountPageBytes))
	if err != nil {
		return formatFailure(email, failureMessage(err))
	}

	c.logger.Info("check_login_ok", map[string]any{"email": email})
	return Analyze(email, string(body))
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timeout - try again later"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timeout - try again later"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Connection error - check your internet"
	}

	return "Check failed: " + err.Error()
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAccountPageBytes))
	_ = resp.Body.Close()
}
