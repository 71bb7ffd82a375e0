package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

type SessionConfig struct {
	// ExpiresIn is how long a session lives without being refreshed.
	ExpiresIn time.Duration
	// UpdateAge is how old a session must be before Verify slides its expiry.
	// Zero disables sliding.
	UpdateAge time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ExpiresIn: 30 * 24 * time.Hour,
		UpdateAge: 24 * time.Hour,
	}
}

type CreateSessionResult struct {
	Session *core.Session `json:"session"`
	Token   string        `json:"token"`
}

type SessionManager struct {
	config  SessionConfig
	storage core.SessionStorage
	cache   core.SessionCache // nil when caching is disabled
	now     func() time.Time
}

func NewSessionManager(config SessionConfig, storage core.SessionStorage, cache core.SessionCache) *SessionManager {
	if config.ExpiresIn <= 0 {
		config.ExpiresIn = DefaultSessionConfig().ExpiresIn
	}
	return &SessionManager{config: config, storage: storage, cache: cache, now: time.Now}
}

func (sm *SessionManager) Create(ctx context.Context, userID, ip, userAgent string) (*CreateSessionResult, error) {
	pair, err := crypto.GenerateHashedToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := sm.now()
	session := &core.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: pair.Hash,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(sm.config.ExpiresIn),
	}

	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if sm.cache != nil {
		_ = sm.cache.Set(pair.Hash, session)
	}

	return &CreateSessionResult{Session: session, Token: pair.Token}, nil
}

// Verify resolves a raw token to a live session, sliding its expiry once
// it is older than UpdateAge.
func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)
	now := sm.now()

	var session *core.Session
	if sm.cache != nil {
		if cached, err := sm.cache.Get(tokenHash); err == nil {
			session = cached
		}
	}

	if session == nil {
		stored, err := sm.storage.GetSessionByHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) {
				return nil, core.ErrSessionNotFound
			}
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		session = stored
	}

	if now.After(session.ExpiresAt) {
		if sm.cache != nil {
			_ = sm.cache.Delete(tokenHash)
		}
		_ = sm.storage.DeleteSessionByID(ctx, session.ID)
		return nil, core.ErrSessionExpired
	}

	if sm.config.UpdateAge > 0 && now.Sub(session.UpdatedAt) >= sm.config.UpdateAge {
		refreshed := *session
		refreshed.UpdatedAt = now
		refreshed.ExpiresAt = now.Add(sm.config.ExpiresIn)
		if err := sm.storage.UpdateSession(ctx, &refreshed); err != nil {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}
		session = &refreshed
	}

	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)
	if err := sm.storage.DeleteSessionByHash(ctx, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}
	return nil
}

func (sm *SessionManager) DestroyBySessionID(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return core.ErrSessionNotFound
	}

	if sm.cache != nil {
		if session, err := sm.storage.GetSessionByID(ctx, sessionID); err == nil {
			_ = sm.cache.Delete(session.TokenHash)
		}
	}

	return sm.storage.DeleteSessionByID(ctx, sessionID)
}

func (sm *SessionManager) DestroyAllUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrUserIDRequired
	}

	if sm.cache != nil {
		if sessions, err := sm.storage.GetUserSessions(ctx, userID); err == nil {
			for _, s := range sessions {
				_ = sm.cache.Delete(s.TokenHash)
			}
		}
	}

	return sm.storage.DeleteUserSessions(ctx, userID)
}

// Cleanup removes expired sessions from storage.
func (sm *SessionManager) Cleanup(ctx context.Context) (int, error) {
	return sm.storage.DeleteExpiredSessions(ctx)
}
