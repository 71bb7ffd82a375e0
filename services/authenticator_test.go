package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lborres/starterp/core"
)

type observed struct {
	strategy string
	kind     core.OutcomeKind
}

func newTestAuthenticator(resolver *fakeResolver, verifier *fakeVerifier, seen *[]observed) *Authenticator {
	cfg := AuthenticatorConfig{Timeout: 50 * time.Millisecond, Logger: testLogger()}
	if seen != nil {
		cfg.Observer = func(s string, k core.OutcomeKind) { *seen = append(*seen, observed{s, k}) }
	}
	return NewAuthenticator(cfg, NewCookieStrategy(resolver), NewBearerStrategy(verifier))
}

func sessionFor(id string, roles ...string) *core.SessionData {
	return &core.SessionData{
		Session: &core.Session{ID: "sess-" + id, UserID: id},
		User:    &core.User{ID: id, Email: id + "@example.com", Roles: roles},
	}
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// Requirement: a valid session cookie admits the request before the bearer
// strategy runs, even when the Authorization header is garbage.
func TestAuthenticator_CookieWinsOverBearer(t *testing.T) {
	// Arrange
	resolver := &fakeResolver{data: sessionFor("u1", "admin")}
	verifier := &fakeVerifier{err: core.ErrInvalidToken}
	auth := newTestAuthenticator(resolver, verifier, nil)
	req := core.AuthRequest{Headers: headers("Cookie", "starterp.session_token=abc", "Authorization", "Bearer garbage")}

	// Act
	id, err := auth.Authenticate(context.Background(), req)

	// Assert
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.ID != "u1" || !id.HasRole("admin") {
		t.Errorf("identity = %+v", id)
	}
	if len(verifier.tokens) != 0 {
		t.Errorf("bearer verifier should not be consulted, got %v", verifier.tokens)
	}
}

// Requirement: with no credentials at all the request is rejected as
// unauthenticated.
func TestAuthenticator_NoCredentials(t *testing.T) {
	// Arrange
	var seen []observed
	resolver := &fakeResolver{err: core.ErrNoSession}
	verifier := &fakeVerifier{}
	auth := newTestAuthenticator(resolver, verifier, &seen)

	// Act
	id, err := auth.Authenticate(context.Background(), core.AuthRequest{Headers: http.Header{}})

	// Assert
	if !errors.Is(err, core.ErrAuthenticationRequired) {
		t.Fatalf("Authenticate() error = %v, want ErrAuthenticationRequired", err)
	}
	if id != nil {
		t.Errorf("identity = %+v, want nil", id)
	}
	want := []observed{{"cookie", core.NotApplicable}, {"bearer", core.NotApplicable}}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("observed outcomes = %v, want %v", seen, want)
	}
}

func TestAuthenticator_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *fakeResolver
		verifier   *fakeVerifier
		header     string
		wantID     string
		wantRoles  []string
		wantErr    error
		wantTokens int
	}{
		{
			name:       "bearer admits when no session",
			resolver:   &fakeResolver{err: core.ErrNoSession},
			verifier:   &fakeVerifier{id: &core.Identity{ID: "u2", Roles: []string{"admin"}}},
			header:     "Bearer good-token",
			wantID:     "u2",
			wantRoles:  []string{"admin"},
			wantTokens: 1,
		},
		{
			name:       "scheme is case-insensitive",
			resolver:   &fakeResolver{err: core.ErrNoSession},
			verifier:   &fakeVerifier{id: &core.Identity{ID: "u2"}},
			header:     "bEaReR good-token",
			wantID:     "u2",
			wantRoles:  []string{"user"},
			wantTokens: 1,
		},
		{
			name:      "session without roles defaults to user",
			resolver:  &fakeResolver{data: sessionFor("u3")},
			verifier:  &fakeVerifier{},
			wantID:    "u3",
			wantRoles: []string{"user"},
		},
		{
			name:     "basic scheme is malformed",
			resolver: &fakeResolver{err: core.ErrNoSession},
			verifier: &fakeVerifier{},
			header:   "Basic dXNlcjpwYXNz",
			wantErr:  core.ErrInvalidAuthHeader,
		},
		{
			name:     "empty bearer token is malformed",
			resolver: &fakeResolver{err: core.ErrNoSession},
			verifier: &fakeVerifier{},
			header:   "Bearer    ",
			wantErr:  core.ErrInvalidAuthHeader,
		},
		{
			name:       "rejected token",
			resolver:   &fakeResolver{err: core.ErrNoSession},
			verifier:   &fakeVerifier{err: core.ErrInvalidToken},
			header:     "Bearer expired",
			wantErr:    core.ErrInvalidToken,
			wantTokens: 1,
		},
		{
			name:       "verifier outage",
			resolver:   &fakeResolver{err: core.ErrNoSession},
			verifier:   &fakeVerifier{err: errors.New("jwks unreachable")},
			header:     "Bearer whatever",
			wantErr:    core.ErrProviderUnavailable,
			wantTokens: 1,
		},
		{
			name:     "session provider outage rejects without trying bearer",
			resolver: &fakeResolver{err: errors.New("connection refused")},
			verifier: &fakeVerifier{id: &core.Identity{ID: "u2"}},
			header:   "Bearer good-token",
			wantErr:  core.ErrProviderUnavailable,
		},
		{
			name:     "slow session provider times out",
			resolver: &fakeResolver{block: true},
			verifier: &fakeVerifier{},
			wantErr:  core.ErrProviderUnavailable,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			auth := newTestAuthenticator(test.resolver, test.verifier, nil)
			h := http.Header{}
			if test.header != "" {
				h.Set("Authorization", test.header)
			}

			// Act
			id, err := auth.Authenticate(context.Background(), core.AuthRequest{Headers: h})

			// Assert
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, test.wantErr)
			}
			if len(test.verifier.tokens) != test.wantTokens {
				t.Errorf("verifier calls = %d, want %d", len(test.verifier.tokens), test.wantTokens)
			}
			if test.wantErr != nil {
				return
			}
			if id.ID != test.wantID {
				t.Errorf("identity id = %q, want %q", id.ID, test.wantID)
			}
			if len(id.Roles) != len(test.wantRoles) || id.Roles[0] != test.wantRoles[0] {
				t.Errorf("roles = %v, want %v", id.Roles, test.wantRoles)
			}
		})
	}
}

func TestAuthenticator_ObserverSeesDecidingStrategy(t *testing.T) {
	var seen []observed
	resolver := &fakeResolver{err: core.ErrNoSession}
	verifier := &fakeVerifier{err: core.ErrInvalidToken}
	auth := newTestAuthenticator(resolver, verifier, &seen)

	auth.Authenticate(context.Background(), core.AuthRequest{Headers: headers("Authorization", "Bearer x")})

	if len(seen) != 2 || seen[1] != (observed{"bearer", core.Rejected}) {
		t.Errorf("observed outcomes = %v", seen)
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantOK    bool
	}{
		{header: "Bearer abc", wantToken: "abc", wantOK: true},
		{header: "bearer  abc ", wantToken: "abc", wantOK: true},
		{header: "Bearer", wantOK: false},
		{header: "Bearer ", wantOK: false},
		{header: "Token abc", wantOK: false},
		{header: "Bearerabc", wantOK: false},
	}
	for _, test := range tests {
		token, ok := parseBearer(test.header)
		if token != test.wantToken || ok != test.wantOK {
			t.Errorf("parseBearer(%q) = %q, %v; want %q, %v", test.header, token, ok, test.wantToken, test.wantOK)
		}
	}
}

func TestOutcomeKind_String(t *testing.T) {
	if core.Admitted.String() != "admitted" || core.Rejected.String() != "rejected" || core.NotApplicable.String() != "not_applicable" {
		t.Error("unexpected outcome kind names")
	}
}
