package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultCheckInterval = 60 * time.Second
	defaultCallTimeout   = 10 * time.Second
	googleProvider       = "google"
)

var (
	// ErrNotInitialized is returned by every operation called before Init.
	ErrNotInitialized     = errors.New("auth context not initialized")
	ErrAlreadyInitialized = errors.New("auth context already initialized")
	ErrNilProvider        = errors.New("auth provider is nil")
)

// Result is what interactive sign-in and sign-up calls return. Error holds
// a message fit for display when Success is false.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthContext is the single owner of the provider handle. It keeps the
// Store consistent with what the provider reports.
type AuthContext struct {
	mu          sync.RWMutex
	provider    Provider
	store       *Store
	logger      *slog.Logger
	callTimeout time.Duration
}

type AuthOption func(*AuthContext)

// WithCallTimeout bounds every remote call. Default: 10s.
func WithCallTimeout(d time.Duration) AuthOption {
	return func(a *AuthContext) { a.callTimeout = d }
}

func NewAuthContext(store *Store, logger *slog.Logger, opts ...AuthOption) *AuthContext {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuthContext{
		store:       store,
		logger:      logger.With("component", "AuthContext"),
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init installs the provider. It can only be called once.
func (a *AuthContext) Init(p Provider) error {
	if p == nil {
		return ErrNilProvider
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.provider != nil {
		return ErrAlreadyInitialized
	}
	a.provider = p
	return nil
}

func (a *AuthContext) handle() (Provider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.provider == nil {
		return nil, ErrNotInitialized
	}
	return a.provider, nil
}

func (a *AuthContext) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.callTimeout)
}

// SignIn signs in with email and password. Only ErrNotInitialized is
// returned as an error; every other failure is reported in the Result.
func (a *AuthContext) SignIn(ctx context.Context, email, password string) (Result, error) {
	p, err := a.handle()
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := a.call(ctx)
	defer cancel()

	session, err := p.SignInEmail(ctx, email, password)
	return a.complete("sign in", session, err), nil
}

func (a *AuthContext) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (Result, error) {
	p, err := a.handle()
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := a.call(ctx)
	defer cancel()

	session, err := p.SignUpEmail(ctx, email, password, meta)
	return a.complete("sign up", session, err), nil
}

func (a *AuthContext) complete(op string, session *Session, err error) Result {
	if err != nil {
		return a.failure(op, err)
	}
	if session == nil {
		return a.failure(op, ErrMalformedResponse)
	}
	a.merge(session)
	return Result{Success: true}
}

func (a *AuthContext) failure(op string, err error) Result {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.expected() {
		a.logger.Debug(op+" rejected", "code", pe.Code)
		return Result{Error: pe.Message}
	}
	a.logger.Error(op+" failed", "error", err)
	return Result{Error: "something went wrong, please try again"}
}

// SignInWithGoogle starts the redirect flow and returns the URL to open.
// The session it produces is picked up by the next Refresh.
func (a *AuthContext) SignInWithGoogle(ctx context.Context, callbackURL string) (string, error) {
	p, err := a.handle()
	if err != nil {
		return "", err
	}
	ctx, cancel := a.call(ctx)
	defer cancel()
	return p.SignInSocial(ctx, googleProvider, callbackURL)
}

// SignOut asks the provider to end the session and clears the store even
// when that call fails. The remote error, if any, is returned.
func (a *AuthContext) SignOut(ctx context.Context) error {
	defer a.store.Logout()

	p, err := a.handle()
	if err != nil {
		return err
	}
	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := p.SignOut(ctx); err != nil {
		a.logger.Warn("remote sign out failed, cleared local state", "error", err)
		return err
	}
	return nil
}

// GetSession asks the provider for the current session without touching
// the store. It returns nil, nil when there is none.
func (a *AuthContext) GetSession(ctx context.Context) (*Session, error) {
	p, err := a.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := a.call(ctx)
	defer cancel()
	return p.GetSession(ctx)
}

// GetUser returns the user held by the store, or nil.
func (a *AuthContext) GetUser() (*UserRef, error) {
	if _, err := a.handle(); err != nil {
		return nil, err
	}
	return a.store.State().User, nil
}

// Refresh reconciles the store with the provider's session. A missing
// session logs the store out only once it has hydrated, so state restored
// from disk is not thrown away by a check that raced ahead of it. A failed
// call leaves the store untouched.
func (a *AuthContext) Refresh(ctx context.Context) error {
	session, err := a.GetSession(ctx)
	if err != nil {
		return err
	}
	if session != nil {
		a.merge(session)
		return nil
	}

	st := a.store.State()
	if st.IsAuthenticated && st.HasHydrated {
		a.logger.Info("session ended on the server, logging out")
		a.store.Logout()
	}
	return nil
}

func (a *AuthContext) merge(s *Session) {
	a.store.UpdateUser(s.User)
	if s.Token != "" {
		a.store.UpdateToken(s.Token)
	}
}

// Start runs Refresh now and then every interval until ctx is done or the
// returned stop function is called. stop waits for a running check to end.
func (a *AuthContext) Start(ctx context.Context, interval time.Duration) (stop func(), err error) {
	if _, err := a.handle(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("session check failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// AuthHeaders returns the headers that authenticate an API call with the
// stored token.
func (a *AuthContext) AuthHeaders() http.Header {
	h := http.Header{}
	if token := a.store.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// HandleAuthError logs the store out when err is a 401 from the server and
// reports whether it did.
func (a *AuthContext) HandleAuthError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Status == http.StatusUnauthorized {
		a.store.Logout()
		return true
	}
	return false
}
