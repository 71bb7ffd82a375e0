package core

import "errors"

// Authentication Related Errors
var (
	// User errors
	ErrUserExists         = errors.New("user already exists")       // 409 Conflict
	ErrUserNotFound       = errors.New("user not found")            // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password") // 401 Unauthorized
	ErrAccountNotFound    = errors.New("account not found")         // 404 Not Found
)

// Application record errors
var (
	ErrRoleNotFound         = errors.New("role not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Session errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header") // 401
	ErrInvalidToken      = errors.New("invalid or expired token")     // 401
	ErrNoSession         = errors.New("no session")                   // 401
	ErrSessionNotFound   = errors.New("session not found")            // 401
	ErrSessionExpired    = errors.New("session expired")              // 401
	ErrCacheNotFound     = errors.New("entry not found in cache")
)

// Authentication pipeline errors
var (
	ErrAuthenticationRequired = errors.New("authentication required")                  // 401
	ErrProviderUnavailable    = errors.New("authentication provider unavailable")      // 401
	ErrForbidden              = errors.New("insufficient permissions for this action") // 403
	ErrTooManyRequests        = errors.New("too many requests")                        // 429
)

// OAuth errors
var (
	ErrUnsupportedProvider = errors.New("unsupported social provider")    // 400
	ErrInvalidOAuthState   = errors.New("invalid or expired oauth state") // 400
	ErrOAuthExchange       = errors.New("oauth code exchange failed")     // 401
)

// Validation errors (client input)
var (
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
	ErrEmailRequired     = errors.New("email is required")                                       // 400
	ErrPasswordRequired  = errors.New("password is required")                                    // 400
	ErrPasswordTooShort  = errors.New("password is too short")                                   // 400
	ErrPasswordTooLong   = errors.New("password is too long")                                    // 400
	ErrInvalidEmail      = errors.New("invalid email format")                                    // 400
	ErrUserIDRequired    = errors.New("user id is required")                                     // 400
	ErrInvalidRole       = errors.New("invalid role")                                            // 400
	ErrInvalidTier       = errors.New("invalid subscription tier")                               // 400
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required") // 500
	ErrHTTPAdapterRequired = errors.New("adapter is required")          // 500
	ErrSecretRequired      = errors.New("secret is required")           // 500
	ErrSecretTooShort      = errors.New("secret too short")             // 500
)
