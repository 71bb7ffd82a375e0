package starterp

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/cache"
	"github.com/lborres/starterp/pkg/crypto"
	"github.com/lborres/starterp/services"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	AppStorage  = core.AppStorage
	Cache       = core.SessionCache

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig = services.SessionConfig
	CacheConfig   = core.CacheConfig
)

type (
	User        = core.User
	Account     = core.Account
	Session     = core.Session
	SessionData = core.SessionData
	Identity    = core.Identity
	CacheStats  = core.CacheStats

	UserRole    = core.UserRole
	RoleRecord  = core.RoleRecord
	SystemEvent = core.SystemEvent
)

const (
	RoleUser  = core.RoleUser
	RoleAdmin = core.RoleAdmin
)

// HTTPAdapter mounts the endpoints of a Starter on a web framework.
type HTTPAdapter interface {
	RegisterRoutes(s *Starter) error
}

// BearerMode picks the verifier behind the Authorization header.
type BearerMode string

const (
	BearerJWT     BearerMode = "jwt"
	BearerSession BearerMode = "session"
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
	defaultTokenTTL  = 15 * time.Minute
	issuerName       = "starterp"
	oauthStateTTL    = 10 * time.Minute
)

// Constructors & helpers (convenience re-exports)
var (
	NewSessionCache      = cache.NewSessionCache
	NewArgon2            = crypto.NewArgon2
	DefaultSessionConfig = services.DefaultSessionConfig
)

var (
	ErrUserExists         = core.ErrUserExists
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrNoSession         = core.ErrNoSession
	ErrSessionNotFound   = core.ErrSessionNotFound
	ErrSessionExpired    = core.ErrSessionExpired
	ErrCacheNotFound     = core.ErrCacheNotFound
)

var (
	ErrAuthenticationRequired = core.ErrAuthenticationRequired
	ErrProviderUnavailable    = core.ErrProviderUnavailable
	ErrForbidden              = core.ErrForbidden
)

var (
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrEmailRequired     = core.ErrEmailRequired
	ErrPasswordRequired  = core.ErrPasswordRequired
	ErrPasswordTooShort  = core.ErrPasswordTooShort
	ErrPasswordTooLong   = core.ErrPasswordTooLong
	ErrInvalidEmail      = core.ErrInvalidEmail
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

type Config struct {
	Secret string

	Database AuthStorage
	// AppStorage holds roles, events and subscriptions. When nil, Database
	// is used if it implements AppStorage.
	AppStorage AppStorage
	HTTP       HTTPAdapter

	CacheAdapter   Cache
	DisableCache   bool
	SessionConfig  *SessionConfig
	PasswordHasher PasswordHandler

	// BaseURL is the public origin, used to build OAuth redirect URLs.
	BaseURL      string
	BasePath     string
	CookiePrefix string

	Bearer   BearerMode
	TokenTTL time.Duration
	Google   *GoogleConfig

	AuthTimeout time.Duration
	Observer    services.OutcomeObserver
	Logger      *slog.Logger
}

// Starter is the assembled auth server.
type Starter struct {
	Users         *services.UserService
	Sessions      *services.SessionManager
	Auth          *services.AuthService
	Roles         *services.RoleService
	Subscriptions *services.SubscriptionService
	Authenticator *services.Authenticator
	// Tokens is nil in BearerSession mode.
	Tokens *services.JWTVerifier

	Endpoints    *services.EndpointRegistry
	AppEndpoints *services.EndpointRegistry

	SessionConfig SessionConfig
	BasePath      string
	Logger        *slog.Logger
}

func New(config Config) (*Starter, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	appStorage := config.AppStorage
	if appStorage == nil {
		s, ok := config.Database.(AppStorage)
		if !ok {
			return nil, fmt.Errorf("%w: app storage", ErrDBAdapterRequired)
		}
		appStorage = s
	}

	// Set Defaults

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewSessionCache(CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		})
	}

	sessionConfig := DefaultSessionConfig()
	if config.SessionConfig != nil {
		sessionConfig = *config.SessionConfig
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = NewArgon2()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	bearer := config.Bearer
	if bearer == "" {
		bearer = BearerJWT
	}
	if bearer != BearerJWT && bearer != BearerSession {
		return nil, fmt.Errorf("unknown bearer mode %q", bearer)
	}

	users := services.NewUserService(config.Database, passwordHasher, logger)
	sessions := services.NewSessionManager(sessionConfig, config.Database, cacheAdapter)
	roles := services.NewRoleService(appStorage, appStorage, logger)

	auth := services.NewAuthService(services.AuthConfig{
		Users:        users,
		Sessions:     sessions,
		Roles:        roles,
		CookiePrefix: config.CookiePrefix,
		OAuth:        oauthConfig(config, basePath),
		Logger:       logger,
	})

	var (
		tokens   *services.JWTVerifier
		verifier core.TokenVerifier
	)
	switch bearer {
	case BearerJWT:
		ttl := config.TokenTTL
		if ttl <= 0 {
			ttl = defaultTokenTTL
		}
		tokens = services.NewJWTVerifier(crypto.NewJWTIssuer(config.Secret, issuerName, ttl))
		verifier = tokens
	case BearerSession:
		verifier = services.NewSessionTokenVerifier(auth)
	}

	authenticator := services.NewAuthenticator(
		services.AuthenticatorConfig{
			Timeout:  config.AuthTimeout,
			Observer: config.Observer,
			Logger:   logger,
		},
		services.NewCookieStrategy(auth),
		services.NewBearerStrategy(verifier),
	)

	endpoints := services.NewEndpointRegistry()
	appEndpoints, err := services.NewAppRegistry()
	if err != nil {
		return nil, err
	}

	s := &Starter{
		Users:         users,
		Sessions:      sessions,
		Auth:          auth,
		Roles:         roles,
		Subscriptions: services.NewSubscriptionService(appStorage),
		Authenticator: authenticator,
		Tokens:        tokens,
		Endpoints:     endpoints,
		AppEndpoints:  appEndpoints,
		SessionConfig: sessionConfig,
		BasePath:      basePath,
		Logger:        logger,
	}

	if err := config.HTTP.RegisterRoutes(s); err != nil {
		return nil, err
	}

	return s, nil
}

func oauthConfig(config Config, basePath string) *services.OAuthConfig {
	if config.Google == nil || config.Google.ClientID == "" {
		return nil
	}
	redirect := strings.TrimRight(config.BaseURL, "/") + basePath + "/callback/google"
	return &services.OAuthConfig{
		Providers: []services.OAuthProvider{
			services.NewGoogleProvider(config.Google.ClientID, config.Google.ClientSecret, redirect),
		},
		States: cache.NewMemory[services.OAuthState](CacheConfig{TTL: oauthStateTTL, MaxSize: 10000}),
	}
}
