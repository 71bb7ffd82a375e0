package core

import "time"

// User represents a user account in the system
//
// This is the "identity" - who someone is
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	EmailVerified    bool      `json:"emailVerified"`
	Name             string    `json:"name"`
	Image            *string   `json:"image,omitempty"`
	Roles            []string  `json:"roles,omitempty"`
	StripeCustomerID *string   `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Account represents an authentication method
//
// This is the "credential" - how someone proves who they are
type Account struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	ProviderID   string     `json:"providerId"` // "credential", "google"
	AccountID    string     `json:"accountId"`
	Password     *string    `json:"-"`
	AccessToken  *string    `json:"-"`
	RefreshToken *string    `json:"-"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

const CredentialProvider = "credential"

// Session represents an active login session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"-"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionData combines user and session info
// The model returned to clients
type SessionData struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// Identity is the request-scoped principal admitted by an authentication strategy.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// DefaultRoles is what an identity carries when the provider reports none.
func DefaultRoles(roles []string) []string {
	if len(roles) == 0 {
		return []string{string(RoleUser)}
	}
	return roles
}

func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// RoleRecord assigns a role to a user. A user without one is a plain user.
type RoleRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AdminUser is the projection returned when listing administrators.
type AdminUser struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Role event types
const (
	EventUserRoleCreated = "user_role_created"
	EventUserRoleUpdated = "user_role_updated"
	EventUserRoleRemoved = "user_role_removed"
)

// SystemEvent is an append-only audit record.
type SystemEvent struct {
	ID          string            `json:"id"`
	EventType   string            `json:"eventType"`
	UserID      string            `json:"userId"`
	RoleID      *string           `json:"roleId,omitempty"`
	ActorID     string            `json:"actorId"`
	Properties  map[string]string `json:"properties"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

func (t SubscriptionTier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// Subscription holds billing metadata for a user. At most one per user.
type Subscription struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Tier      SubscriptionTier `json:"tier"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
