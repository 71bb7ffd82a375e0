// Package memory keeps every record in process memory. It backs
// USE_IN_MEMORY_STORAGE deployments and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lborres/starterp/core"
)

type Store struct {
	mu sync.RWMutex

	users         map[string]*core.User
	accounts      map[string]*core.Account
	sessions      map[string]*core.Session // keyed by token hash
	roles         []*core.RoleRecord
	events        []*core.SystemEvent
	subscriptions map[string]*core.Subscription // keyed by user id

	now func() time.Time
}

var (
	_ core.AuthStorage     = (*Store)(nil)
	_ core.AppStorage      = (*Store)(nil)
	_ core.RoleEventWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:         make(map[string]*core.User),
		accounts:      make(map[string]*core.Account),
		sessions:      make(map[string]*core.Session),
		subscriptions: make(map[string]*core.Subscription),
		now:           time.Now,
	}
}

func (s *Store) stamp(created, updated *time.Time) {
	now := s.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// Users

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.ErrUserExists
		}
	}
	s.stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return core.ErrUserNotFound
	}
	s.stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	for k, a := range s.accounts {
		if a.UserID == id {
			delete(s.accounts, k)
		}
	}
	for k, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, k)
		}
	}
	kept := s.roles[:0]
	for _, r := range s.roles {
		if r.UserID != id {
			kept = append(kept, r)
		}
	}
	s.roles = kept
	delete(s.subscriptions, id)
	return nil
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.ProviderID == a.ProviderID && existing.AccountID == a.AccountID {
			return fmt.Errorf("account %s/%s already linked", a.ProviderID, a.AccountID)
		}
	}
	s.stamp(&a.CreatedAt, &a.UpdatedAt)
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByUserAndProvider(_ context.Context, userID, providerID string) ([]*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) GetAccountByProviderAccountID(_ context.Context, providerID, accountID string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, core.ErrAccountNotFound
}

func (s *Store) UpdateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; !ok {
		return core.ErrAccountNotFound
	}
	s.stamp(&a.CreatedAt, &a.UpdatedAt)
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

// Sessions

func (s *Store) CreateSession(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *Store) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) GetSessionByID(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ID == id {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (s *Store) GetUserSessions(_ context.Context, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateSession(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.TokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *Store) DeleteSessionByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, sess := range s.sessions {
		if sess.ID == id {
			delete(s.sessions, k)
		}
	}
	return nil
}

func (s *Store) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}
