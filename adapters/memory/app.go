package memory

import (
	"context"

	"github.com/lborres/starterp/core"
)

// Roles

func (s *Store) InsertRole(_ context.Context, r *core.RoleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertRole(r)
	return nil
}

// InsertRoleWithEvent stores the record and its event under one lock.
func (s *Store) InsertRoleWithEvent(_ context.Context, r *core.RoleRecord, e *core.SystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertRole(r)
	s.appendEvent(e)
	return nil
}

func (s *Store) insertRole(r *core.RoleRecord) {
	s.stamp(&r.CreatedAt, &r.UpdatedAt)
	cp := *r
	s.roles = append(s.roles, &cp)
}

// LatestRole scans backwards so the most recent insert wins even when two
// records share a timestamp.
func (s *Store) LatestRole(_ context.Context, userID string) (*core.RoleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.roles) - 1; i >= 0; i-- {
		if s.roles[i].UserID == userID {
			cp := *s.roles[i]
			return &cp, nil
		}
	}
	return nil, core.ErrRoleNotFound
}

// ListByRole returns the current record of every user whose latest role matches.
func (s *Store) ListByRole(_ context.Context, role core.UserRole) ([]*core.RoleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*core.RoleRecord
	for i := len(s.roles) - 1; i >= 0; i-- {
		r := s.roles[i]
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		if r.Role == role {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) DeleteUserRoles(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.roles[:0]
	n := 0
	for _, r := range s.roles {
		if r.UserID == userID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.roles = kept
	return n, nil
}

// Events

func (s *Store) AppendEvent(_ context.Context, e *core.SystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendEvent(e)
	return nil
}

func (s *Store) appendEvent(e *core.SystemEvent) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	cp := *e
	cp.Properties = make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		cp.Properties[k] = v
	}
	s.events = append(s.events, &cp)
}

func (s *Store) ListUserEvents(_ context.Context, userID string) ([]*core.SystemEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.SystemEvent
	for _, e := range s.events {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Subscriptions

func (s *Store) GetSubscription(_ context.Context, userID string) (*core.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, core.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) UpsertSubscription(_ context.Context, sub *core.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	s.stamp(&sub.CreatedAt, &sub.UpdatedAt)
	cp := *sub
	s.subscriptions[sub.UserID] = &cp
	return nil
}
