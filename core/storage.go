package core

import "context"

type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error

	// Query methods
	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetUserSessions(ctx context.Context, userID string) ([]*Session, error)

	// Update
	UpdateSession(ctx context.Context, session *Session) error

	// Delete methods
	DeleteSessionByID(ctx context.Context, id string) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// Cleanup
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpdateUser(ctx context.Context, u *User) error

	DeleteUser(ctx context.Context, id string) error
}

type AccountStorage interface {
	CreateAccount(ctx context.Context, a *Account) error

	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByUserAndProvider(ctx context.Context, userID, providerID string) ([]*Account, error)
	GetAccountByProviderAccountID(ctx context.Context, providerID, accountID string) (*Account, error)

	UpdateAccount(ctx context.Context, a *Account) error

	DeleteAccount(ctx context.Context, id string) error
}

type AuthStorage interface {
	UserStorage
	AccountStorage
	SessionStorage
}

// RoleStorage persists role assignments. LatestRole returns ErrRoleNotFound
// when the user has never been assigned one.
type RoleStorage interface {
	InsertRole(ctx context.Context, r *RoleRecord) error
	LatestRole(ctx context.Context, userID string) (*RoleRecord, error)
	ListByRole(ctx context.Context, role UserRole) ([]*RoleRecord, error)
	DeleteUserRoles(ctx context.Context, userID string) (int, error)
}

// RoleEventWriter is implemented by stores that can write a role record and
// its audit event atomically.
type RoleEventWriter interface {
	InsertRoleWithEvent(ctx context.Context, r *RoleRecord, e *SystemEvent) error
}

type EventStorage interface {
	AppendEvent(ctx context.Context, e *SystemEvent) error
	ListUserEvents(ctx context.Context, userID string) ([]*SystemEvent, error)
}

type SubscriptionStorage interface {
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	UpsertSubscription(ctx context.Context, s *Subscription) error
}

// AppStorage covers the application records layered on top of auth.
type AppStorage interface {
	RoleStorage
	EventStorage
	SubscriptionStorage
}
