package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lborres/starterp/core"
)

const defaultSessionCookie = "starterp.session_token"

// SignUpMetadata carries the optional profile fields sent on sign-up.
type SignUpMetadata struct {
	Name  string
	Image *string
}

// Provider is the auth server as seen from the client.
type Provider interface {
	SignInEmail(ctx context.Context, email, password string) (*Session, error)
	SignUpEmail(ctx context.Context, email, password string, meta SignUpMetadata) (*Session, error)
	// SignInSocial returns the URL the user must visit to continue.
	SignInSocial(ctx context.Context, provider, callbackURL string) (string, error)
	SignOut(ctx context.Context) error
	// GetSession returns nil, nil when there is no session.
	GetSession(ctx context.Context) (*Session, error)
}

// ProviderError is a structured error reply from the auth server.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth server: %d %s: %s", e.Status, e.Code, e.Message)
}

// expected reports whether the user can act on the failure, such as bad
// credentials, as opposed to a broken server.
func (e *ProviderError) expected() bool {
	return e.Status >= 400 && e.Status < 500
}

// ErrMalformedResponse means the server answered 2xx with a body the client
// could not use.
var ErrMalformedResponse = errors.New("malformed auth server response")

// HTTPProvider talks to the starterp auth endpoints. The session cookie is
// kept in a cookie jar; a token source, when set, is sent as a bearer
// credential so a restored token works before any cookie exists.
type HTTPProvider struct {
	base       *url.URL
	httpClient *http.Client
	cookieName string
	token      func() string
}

type HTTPOption func(*HTTPProvider)

// WithHTTPClient replaces the default client. Its Jar is used for cookies.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.httpClient = c }
}

func WithCookieName(name string) HTTPOption {
	return func(p *HTTPProvider) { p.cookieName = name }
}

// WithTokenSource sends the returned token as Authorization: Bearer.
func WithTokenSource(fn func() string) HTTPOption {
	return func(p *HTTPProvider) { p.token = fn }
}

// NewHTTPProvider creates a provider for the auth routes under baseURL,
// for example "https://api.example.com/api/auth".
func NewHTTPProvider(baseURL string, opts ...HTTPOption) (*HTTPProvider, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid auth base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid auth base URL %q", baseURL)
	}

	p := &HTTPProvider{base: base, cookieName: defaultSessionCookie}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		jar, _ := cookiejar.New(nil)
		p.httpClient = &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return p, nil
}

type authResponse struct {
	User    *core.User    `json:"user"`
	Session *core.Session `json:"session"`
	Token   string        `json:"token"`
}

func (p *HTTPProvider) SignInEmail(ctx context.Context, email, password string) (*Session, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := p.do(ctx, http.MethodPost, "/sign-in/email", body, &out); err != nil {
		return nil, err
	}
	return toSession(out.User, out.Session, out.Token)
}

func (p *HTTPProvider) SignUpEmail(ctx context.Context, email, password string, meta SignUpMetadata) (*Session, error) {
	var out authResponse
	body := map[string]any{"email": email, "password": password, "name": meta.Name}
	if meta.Image != nil {
		body["image"] = *meta.Image
	}
	if err := p.do(ctx, http.MethodPost, "/sign-up/email", body, &out); err != nil {
		return nil, err
	}
	return toSession(out.User, out.Session, out.Token)
}

func (p *HTTPProvider) SignInSocial(ctx context.Context, provider, callbackURL string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	body := map[string]string{"provider": provider, "callbackURL": callbackURL}
	if err := p.do(ctx, http.MethodPost, "/sign-in/social", body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", ErrMalformedResponse
	}
	return out.URL, nil
}

func (p *HTTPProvider) SignOut(ctx context.Context) error {
	return p.do(ctx, http.MethodPost, "/sign-out", nil, nil)
}

func (p *HTTPProvider) GetSession(ctx context.Context) (*Session, error) {
	var out *core.SessionData
	if err := p.do(ctx, http.MethodGet, "/get-session", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return toSession(out.User, out.Session, p.currentToken())
}

// currentToken is the session cookie from the jar, else the token source.
func (p *HTTPProvider) currentToken() string {
	if jar := p.httpClient.Jar; jar != nil {
		for _, c := range jar.Cookies(p.base) {
			if c.Name == p.cookieName {
				return c.Value
			}
		}
	}
	if p.token != nil {
		return p.token()
	}
	return ""
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if p.token != nil {
		if token := p.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e core.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error.Code == "" {
			return &ProviderError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: "request failed"}
		}
		return &ProviderError{Status: resp.StatusCode, Code: e.Error.Code, Message: e.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func toSession(user *core.User, session *core.Session, token string) (*Session, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrMalformedResponse)
	}
	s := &Session{
		User:  UserRef{ID: user.ID, Email: user.Email, Roles: user.Roles}.withDefaultRoles(),
		Token: token,
	}
	if session != nil {
		s.IssuedAt = session.CreatedAt
		s.ExpiresAt = session.ExpiresAt
	}
	return s, nil
}
