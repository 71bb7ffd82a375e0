package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const persistTimeout = 2 * time.Second

// Store holds the last known auth state and writes it to a Persister
// whenever it changes. Create one per application and pass it to whatever
// needs it.
type Store struct {
	mu        sync.Mutex
	state     State
	persister Persister
	lastSaved []byte
	// version counts persisted-field changes so Hydrate can tell whether the
	// state moved while it was loading.
	version uint64
	logger  *slog.Logger
}

func NewStore(persister Persister, logger *slog.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persister: persister,
		logger:    logger.With("component", "AuthStore"),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Token returns the stored token or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token == nil {
		return ""
	}
	return *s.state.Token
}

// UpdateUser records user as signed in.
func (s *Store) UpdateUser(user UserRef) {
	user = user.withDefaultRoles()
	s.mutate(func(st *State) {
		if st.User != nil && st.User.equal(user) && st.IsAuthenticated {
			return
		}
		st.User = &user
		st.IsAuthenticated = true
	})
}

// UpdateToken stores token. An empty token clears it.
func (s *Store) UpdateToken(token string) {
	s.mutate(func(st *State) {
		if token == "" {
			st.Token = nil
			return
		}
		if st.Token != nil && *st.Token == token {
			return
		}
		st.Token = &token
	})
}

// Logout clears the user and token. HasHydrated is left as is.
func (s *Store) Logout() {
	s.mutate(func(st *State) {
		st.User = nil
		st.Token = nil
		st.IsAuthenticated = false
	})
}

func (s *Store) SetHasHydrated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HasHydrated = v
}

// Hydrate loads the persisted state once and marks the store hydrated.
// Stored state replaces whatever was set before Hydrate was called, but an
// update that lands while the load is in flight wins over the stored copy.
// A corrupt payload is logged and treated as empty.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	start := s.version
	s.mu.Unlock()

	data, err := s.persister.Load(ctx)
	if err != nil {
		s.SetHasHydrated(true)
		return fmt.Errorf("failed to load auth state: %w", err)
	}

	var loaded State
	if len(data) > 0 {
		if err := json.Unmarshal(data, &loaded); err != nil {
			s.logger.Warn("discarding unreadable auth state", "error", err)
			loaded = State{}
			data = nil
		}
	}
	if loaded.User != nil {
		u := loaded.User.withDefaultRoles()
		loaded.User = &u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != start {
		s.logger.Debug("auth state changed during hydration, keeping live state")
		s.state.HasHydrated = true
		return nil
	}
	loaded.HasHydrated = true
	s.state = loaded
	s.lastSaved = data
	return nil
}

// mutate applies fn and persists the result when the persisted fields
// changed. Persistence failures are logged; the in-memory state stays.
func (s *Store) mutate(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)

	data, err := json.Marshal(s.state)
	if err != nil {
		s.logger.Error("failed to encode auth state", "error", err)
		return
	}
	if bytes.Equal(data, s.lastSaved) {
		return
	}
	s.version++

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, data); err != nil {
		s.logger.Warn("failed to persist auth state", "error", err)
		return
	}
	s.lastSaved = data
}
