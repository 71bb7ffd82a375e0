package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// OAuthProvider is a social sign-in provider.
type OAuthProvider interface {
	ID() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthProfile, error)
}

// OAuthState is remembered between the redirect and the callback.
type OAuthState struct {
	ProviderID  string
	CallbackURL string
}

type OAuthConfig struct {
	Providers []OAuthProvider
	// States must expire entries; a TTL of a few minutes is typical.
	States core.Cache[OAuthState]
}

type OAuthResult struct {
	AuthResult
	CallbackURL string `json:"callbackURL"`
}

func (s *AuthService) provider(id string) (OAuthProvider, error) {
	if s.oauth == nil {
		return nil, core.ErrUnsupportedProvider
	}
	for _, p := range s.oauth.Providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, core.ErrUnsupportedProvider
}

// SocialSignIn returns the provider URL the browser should be sent to.
func (s *AuthService) SocialSignIn(ctx context.Context, providerID, callbackURL string) (string, error) {
	p, err := s.provider(providerID)
	if err != nil {
		return "", err
	}

	state, err := crypto.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	if err := s.oauth.States.Set(state, OAuthState{ProviderID: providerID, CallbackURL: callbackURL}); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return p.AuthCodeURL(state), nil
}

// HandleOAuthCallback completes a social sign-in and opens a session.
func (s *AuthService) HandleOAuthCallback(ctx context.Context, providerID, state, code, ip, userAgent string) (*OAuthResult, error) {
	p, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}

	saved, err := s.oauth.States.Get(state)
	if err != nil || saved.ProviderID != providerID {
		return nil, core.ErrInvalidOAuthState
	}
	_ = s.oauth.States.Delete(state)

	profile, err := p.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", "provider", providerID, "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrOAuthExchange, err)
	}

	user, err := s.users.UpsertUserFromOAuth(ctx, *profile)
	if err != nil {
		return nil, err
	}

	result, err := s.startSession(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &OAuthResult{AuthResult: *result, CallbackURL: saved.CallbackURL}, nil
}

// GoogleProvider signs users in with Google accounts.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleProvider) ID() string { return "google" }

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("userinfo missing subject")
	}

	profile := &OAuthProfile{
		ProviderID:    g.ID(),
		AccountID:     info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		AccessToken:   &tok.AccessToken,
	}
	if info.Picture != "" {
		profile.Image = &info.Picture
	}
	if tok.RefreshToken != "" {
		profile.RefreshToken = &tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC().Truncate(time.Second)
		profile.ExpiresAt = &expiry
	}
	return profile, nil
}
