package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lborres/starterp/core"
)

const defaultCookiePrefix = "starterp"

type SignUpInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User    *core.User    `json:"user"`
	Session *core.Session `json:"session"`
	Token   string        `json:"token"`
}

// RoleLookup resolves the effective role of a user.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (core.UserRole, error)
}

type AuthConfig struct {
	Users    *UserService
	Sessions *SessionManager
	// Roles, when set, fills User.Roles on resolved sessions.
	Roles        RoleLookup
	CookiePrefix string
	OAuth        *OAuthConfig
	Logger       *slog.Logger
}

// AuthService is the email/password and social sign-in provider.
type AuthService struct {
	users      *UserService
	sessions   *SessionManager
	roles      RoleLookup
	cookieName string
	oauth      *OAuthConfig
	logger     *slog.Logger
}

var _ core.SessionResolver = (*AuthService)(nil)

func NewAuthService(cfg AuthConfig) *AuthService {
	prefix := cfg.CookiePrefix
	if prefix == "" {
		prefix = defaultCookiePrefix
	}
	return &AuthService{
		users:      cfg.Users,
		sessions:   cfg.Sessions,
		roles:      cfg.Roles,
		cookieName: prefix + ".session_token",
		oauth:      cfg.OAuth,
		logger:     cfg.Logger.With("component", "AuthService"),
	}
}

// CookieName is the cookie that carries the session token.
func (s *AuthService) CookieName() string {
	return s.cookieName
}

func (s *AuthService) SignUp(ctx context.Context, input SignUpInput, ip, userAgent string) (*AuthResult, error) {
	user, err := s.users.CreateUser(ctx, input.Email, input.Password, input.Name, input.Image)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, ip, userAgent)
}

func (s *AuthService) SignIn(ctx context.Context, input SignInInput, ip, userAgent string) (*AuthResult, error) {
	user, err := s.users.VerifyPassword(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, ip, userAgent)
}

func (s *AuthService) startSession(ctx context.Context, user *core.User, ip, userAgent string) (*AuthResult, error) {
	created, err := s.sessions.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.withRoles(ctx, user)
	return &AuthResult{User: user, Session: created.Session, Token: created.Token}, nil
}

// SignOut invalidates the session behind token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

func (s *AuthService) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	session, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	s.withRoles(ctx, user)

	return &core.SessionData{User: user, Session: session}, nil
}

// GetSessionFromHeaders resolves the session cookie carried by headers. When
// the cookie is missing or dead, a session token sent as a bearer credential
// is tried next. Absent, unknown and expired sessions all report ErrNoSession.
func (s *AuthService) GetSessionFromHeaders(ctx context.Context, headers http.Header) (*core.SessionData, error) {
	err := core.ErrNoSession
	for _, token := range s.sessionTokens(headers) {
		data, lookupErr := s.GetSession(ctx, token)
		if lookupErr == nil {
			return data, nil
		}
		if !isNoSession(lookupErr) {
			return nil, lookupErr
		}
		err = fmt.Errorf("%w: %w", core.ErrNoSession, lookupErr)
	}
	return nil, err
}

// sessionTokens lists candidate session tokens, cookie first. Bearer values
// shaped like a JWT are left to the bearer strategy.
func (s *AuthService) sessionTokens(headers http.Header) []string {
	var tokens []string
	if cookie, err := (&http.Request{Header: headers}).Cookie(s.cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	if token, ok := parseBearer(headers.Get("Authorization")); ok && strings.Count(token, ".") != 2 {
		tokens = append(tokens, token)
	}
	return tokens
}

func isNoSession(err error) bool {
	return errors.Is(err, core.ErrSessionNotFound) ||
		errors.Is(err, core.ErrSessionExpired) ||
		errors.Is(err, core.ErrInvalidToken)
}

func (s *AuthService) withRoles(ctx context.Context, user *core.User) {
	if s.roles == nil {
		user.Roles = core.DefaultRoles(user.Roles)
		return
	}
	role, err := s.roles.GetUserRole(ctx, user.ID)
	if err != nil {
		s.logger.Warn("role lookup failed, using default", "userId", user.ID, "error", err)
		role = core.RoleUser
	}
	user.Roles = []string{string(role)}
}
