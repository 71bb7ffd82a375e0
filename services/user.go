package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// OAuthProfile is what a social provider tells us about a user.
type OAuthProfile struct {
	ProviderID    string
	AccountID     string
	Email         string
	EmailVerified bool
	Name          string
	Image         *string
	AccessToken   *string
	RefreshToken  *string
	ExpiresAt     *time.Time
}

type UserService struct {
	storage core.AuthStorage
	hasher  crypto.PasswordHandler
	logger  *slog.Logger
}

func NewUserService(storage core.AuthStorage, hasher crypto.PasswordHandler, logger *slog.Logger) *UserService {
	return &UserService{
		storage: storage,
		hasher:  hasher,
		logger:  logger.With("component", "UserService"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return core.ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return core.ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return core.ErrPasswordRequired
	case len(password) < minPasswordLength:
		return core.ErrPasswordTooShort
	case len(password) > maxPasswordLength:
		return core.ErrPasswordTooLong
	}
	return nil
}

// CreateUser registers a user with a credential account.
func (s *UserService) CreateUser(ctx context.Context, email, password, name string, image *string) (*core.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, core.ErrUserExists
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.newUser(email, name, image, false)
	if err != nil {
		return nil, err
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.linkAccount(ctx, user.ID, core.CredentialProvider, user.ID, func(a *core.Account) {
		a.Password = &hashed
	}); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "userId", user.ID)
	return user, nil
}

// EnsureUser returns the user registered under email, creating it when
// absent. The boolean reports whether a new user was created.
func (s *UserService) EnsureUser(ctx context.Context, email, password, name string) (*core.User, bool, error) {
	existing, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err := s.CreateUser(ctx, email, password, name, nil)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// VerifyPassword checks credentials. Every mismatch is ErrInvalidCredentials
// so callers cannot tell unknown emails from wrong passwords.
func (s *UserService) VerifyPassword(ctx context.Context, email, password string) (*core.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, core.ErrEmailRequired
	}
	if password == "" {
		return nil, core.ErrPasswordRequired
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	accounts, err := s.storage.GetAccountByUserAndProvider(ctx, user.ID, core.CredentialProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if len(accounts) == 0 || accounts[0].Password == nil {
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, *accounts[0].Password)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "userId", user.ID, "error", err)
		return nil, core.ErrInvalidCredentials
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}
	return user, nil
}

// UpsertUserFromOAuth finds the user behind a social profile. A known
// provider account wins, then a user with the same email gets the account
// linked, otherwise a new user is created.
func (s *UserService) UpsertUserFromOAuth(ctx context.Context, p OAuthProfile) (*core.User, error) {
	if p.ProviderID == "" || p.AccountID == "" {
		return nil, core.ErrUserIDRequired
	}
	email := normalizeEmail(p.Email)

	account, err := s.storage.GetAccountByProviderAccountID(ctx, p.ProviderID, p.AccountID)
	switch {
	case err == nil:
		account.AccessToken, account.RefreshToken, account.ExpiresAt = p.AccessToken, p.RefreshToken, p.ExpiresAt
		if err := s.storage.UpdateAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
		return s.storage.GetUserByID(ctx, account.UserID)
	case !errors.Is(err, core.ErrAccountNotFound):
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		user, err = s.newUser(email, p.Name, p.Image, p.EmailVerified)
		if err != nil {
			return nil, err
		}
		if err := s.storage.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("user created from oauth", "userId", user.ID, "provider", p.ProviderID)
	}

	if err := s.linkAccount(ctx, user.ID, p.ProviderID, p.AccountID, func(a *core.Account) {
		a.AccessToken, a.RefreshToken, a.ExpiresAt = p.AccessToken, p.RefreshToken, p.ExpiresAt
	}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if id == "" {
		return nil, core.ErrUserIDRequired
	}
	return s.storage.GetUserByID(ctx, id)
}

func (s *UserService) newUser(email, name string, image *string, verified bool) (*core.User, error) {
	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &core.User{ID: id, Email: email, EmailVerified: verified, Name: name, Image: image}, nil
}

func (s *UserService) linkAccount(ctx context.Context, userID, providerID, accountID string, fill func(*core.Account)) error {
	id, err := crypto.NewID()
	if err != nil {
		return fmt.Errorf("failed to generate account id: %w", err)
	}
	account := &core.Account{ID: id, UserID: userID, ProviderID: providerID, AccountID: accountID}
	fill(account)
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}
