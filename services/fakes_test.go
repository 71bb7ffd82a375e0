package services

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lborres/starterp/adapters/memory"
	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher() *crypto.Argon2 {
	return &crypto.Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

// fakeStore wraps the in-memory store with injectable failures.
type fakeStore struct {
	*memory.Store

	getSessionErr  error
	updateSessErr  error
	latestRoleErr  error
	insertRoleErr  error
	appendEventErr error
	getSubErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{Store: memory.New()}
}

func (f *fakeStore) GetSessionByHash(ctx context.Context, hash string) (*core.Session, error) {
	if f.getSessionErr != nil {
		return nil, f.getSessionErr
	}
	return f.Store.GetSessionByHash(ctx, hash)
}

func (f *fakeStore) UpdateSession(ctx context.Context, s *core.Session) error {
	if f.updateSessErr != nil {
		return f.updateSessErr
	}
	return f.Store.UpdateSession(ctx, s)
}

func (f *fakeStore) LatestRole(ctx context.Context, userID string) (*core.RoleRecord, error) {
	if f.latestRoleErr != nil {
		return nil, f.latestRoleErr
	}
	return f.Store.LatestRole(ctx, userID)
}

func (f *fakeStore) InsertRole(ctx context.Context, r *core.RoleRecord) error {
	if f.insertRoleErr != nil {
		return f.insertRoleErr
	}
	return f.Store.InsertRole(ctx, r)
}

func (f *fakeStore) AppendEvent(ctx context.Context, e *core.SystemEvent) error {
	if f.appendEventErr != nil {
		return f.appendEventErr
	}
	return f.Store.AppendEvent(ctx, e)
}

// InsertRoleWithEvent writes nothing when either injected failure is set.
func (f *fakeStore) InsertRoleWithEvent(ctx context.Context, r *core.RoleRecord, e *core.SystemEvent) error {
	if f.insertRoleErr != nil {
		return f.insertRoleErr
	}
	if f.appendEventErr != nil {
		return f.appendEventErr
	}
	return f.Store.InsertRoleWithEvent(ctx, r, e)
}

// splitRoleStore hides InsertRoleWithEvent so role and event are written
// separately.
type splitRoleStore struct {
	core.RoleStorage
}

func (f *fakeStore) GetSubscription(ctx context.Context, userID string) (*core.Subscription, error) {
	if f.getSubErr != nil {
		return nil, f.getSubErr
	}
	return f.Store.GetSubscription(ctx, userID)
}

// fakeResolver is a scripted session resolver.
type fakeResolver struct {
	mu    sync.Mutex
	data  *core.SessionData
	err   error
	calls int
	block bool
}

func (f *fakeResolver) GetSessionFromHeaders(ctx context.Context, _ http.Header) (*core.SessionData, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.data, f.err
}

type fakeVerifier struct {
	id     *core.Identity
	err    error
	tokens []string
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (*core.Identity, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.id
	return &cp, nil
}

type fakeOAuthProvider struct {
	profile *OAuthProfile
	err     error
	codes   []string
}

func (f *fakeOAuthProvider) ID() string { return "google" }

func (f *fakeOAuthProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeOAuthProvider) Exchange(_ context.Context, code string) (*OAuthProfile, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.profile
	return &cp, nil
}

// testStack wires services over one fake store.
type testStack struct {
	store    *fakeStore
	users    *UserService
	sessions *SessionManager
	roles    *RoleService
	auth     *AuthService
}

func newTestStack(opts ...func(*AuthConfig)) *testStack {
	store := newFakeStore()
	logger := testLogger()
	users := NewUserService(store, testHasher(), logger)
	sessions := NewSessionManager(DefaultSessionConfig(), store, nil)
	roles := NewRoleService(store, store, logger)
	cfg := AuthConfig{Users: users, Sessions: sessions, Roles: roles, Logger: logger}
	for _, o := range opts {
		o(&cfg)
	}
	return &testStack{
		store:    store,
		users:    users,
		sessions: sessions,
		roles:    roles,
		auth:     NewAuthService(cfg),
	}
}
