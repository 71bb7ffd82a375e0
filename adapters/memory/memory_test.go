package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/starterp/core"
)

func TestStore_Users(t *testing.T) {
	// Arrange
	store := New()
	ctx := context.Background()
	user := &core.User{ID: "u1", Email: "a@example.com", Name: "A"}

	// Act & Assert
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser should stamp CreatedAt")
	}
	if err := store.CreateUser(ctx, &core.User{ID: "u2", Email: "a@example.com"}); !errors.Is(err, core.ErrUserExists) {
		t.Errorf("duplicate email error = %v, want ErrUserExists", err)
	}

	got, err := store.GetUserByEmail(ctx, "a@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetUserByEmail() = %+v, %v", got, err)
	}
	got.Name = "mutated"
	again, _ := store.GetUserByID(ctx, "u1")
	if again.Name != "A" {
		t.Error("returned users must be copies")
	}

	if err := store.UpdateUser(ctx, &core.User{ID: "missing"}); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("UpdateUser(missing) error = %v", err)
	}
}

func TestStore_DeleteUserCascades(t *testing.T) {
	store := New()
	ctx := context.Background()
	store.CreateUser(ctx, &core.User{ID: "u1", Email: "a@example.com"})
	store.CreateAccount(ctx, &core.Account{ID: "a1", UserID: "u1", ProviderID: "credential", AccountID: "u1"})
	store.CreateSession(ctx, &core.Session{ID: "s1", UserID: "u1", TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)})
	store.InsertRole(ctx, &core.RoleRecord{ID: "r1", UserID: "u1", Role: core.RoleAdmin})
	store.UpsertSubscription(ctx, &core.Subscription{ID: "sub1", UserID: "u1", Tier: core.TierPremium})

	if err := store.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := store.GetAccountByID(ctx, "a1"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Error("account should be deleted")
	}
	if _, err := store.GetSessionByHash(ctx, "h1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Error("session should be deleted")
	}
	if _, err := store.LatestRole(ctx, "u1"); !errors.Is(err, core.ErrRoleNotFound) {
		t.Error("role should be deleted")
	}
	if _, err := store.GetSubscription(ctx, "u1"); !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Error("subscription should be deleted")
	}
}

func TestStore_Accounts(t *testing.T) {
	store := New()
	ctx := context.Background()
	acc := &core.Account{ID: "a1", UserID: "u1", ProviderID: "google", AccountID: "g-1"}

	if err := store.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := store.CreateAccount(ctx, &core.Account{ID: "a2", UserID: "u2", ProviderID: "google", AccountID: "g-1"}); err == nil {
		t.Error("linking the same provider account twice should fail")
	}

	found, err := store.GetAccountByProviderAccountID(ctx, "google", "g-1")
	if err != nil || found.UserID != "u1" {
		t.Fatalf("GetAccountByProviderAccountID() = %+v, %v", found, err)
	}
	list, _ := store.GetAccountByUserAndProvider(ctx, "u1", "google")
	if len(list) != 1 {
		t.Errorf("GetAccountByUserAndProvider() returned %d accounts", len(list))
	}
	if err := store.UpdateAccount(ctx, &core.Account{ID: "missing"}); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("UpdateAccount(missing) error = %v", err)
	}
}

func TestStore_Sessions(t *testing.T) {
	// Arrange
	store := New()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }
	store.CreateSession(ctx, &core.Session{ID: "s1", UserID: "u1", TokenHash: "h1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	store.CreateSession(ctx, &core.Session{ID: "s2", UserID: "u1", TokenHash: "h2", CreatedAt: now.Add(time.Second), ExpiresAt: now.Add(-time.Minute)})
	store.CreateSession(ctx, &core.Session{ID: "s3", UserID: "u2", TokenHash: "h3", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})

	// Act & Assert
	sessions, _ := store.GetUserSessions(ctx, "u1")
	if len(sessions) != 2 || sessions[0].ID != "s1" {
		t.Fatalf("GetUserSessions() = %+v, want s1 then s2", sessions)
	}

	n, err := store.DeleteExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions() = %d, %v; want 1", n, err)
	}

	if err := store.UpdateSession(ctx, &core.Session{ID: "gone", TokenHash: "nope"}); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("UpdateSession(unknown) error = %v", err)
	}

	if err := store.DeleteSessionByID(ctx, "s3"); err != nil {
		t.Fatalf("DeleteSessionByID() error = %v", err)
	}
	if _, err := store.GetSessionByID(ctx, "s3"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Error("session s3 should be gone")
	}

	n, _ = store.DeleteUserSessions(ctx, "u1")
	if n != 1 {
		t.Errorf("DeleteUserSessions() = %d, want 1", n)
	}
}

// Requirement: the latest role record wins even with identical timestamps.
func TestStore_LatestRoleWins(t *testing.T) {
	store := New()
	ctx := context.Background()
	fixed := time.Now()
	store.now = func() time.Time { return fixed }

	store.InsertRole(ctx, &core.RoleRecord{ID: "r1", UserID: "u1", Role: core.RoleAdmin})
	store.InsertRole(ctx, &core.RoleRecord{ID: "r2", UserID: "u1", Role: core.RoleUser})

	latest, err := store.LatestRole(ctx, "u1")
	if err != nil || latest.ID != "r2" {
		t.Fatalf("LatestRole() = %+v, %v; want r2", latest, err)
	}

	admins, _ := store.ListByRole(ctx, core.RoleAdmin)
	if len(admins) != 0 {
		t.Errorf("demoted user should not be listed as admin: %+v", admins)
	}

	n, _ := store.DeleteUserRoles(ctx, "u1")
	if n != 2 {
		t.Errorf("DeleteUserRoles() = %d, want 2", n)
	}
}

func TestStore_InsertRoleWithEvent(t *testing.T) {
	store := New()
	ctx := context.Background()
	roleID := "r1"

	err := store.InsertRoleWithEvent(ctx,
		&core.RoleRecord{ID: roleID, UserID: "u1", Role: core.RoleAdmin},
		&core.SystemEvent{ID: "e1", UserID: "u1", RoleID: &roleID, EventType: core.EventUserRoleCreated})
	if err != nil {
		t.Fatalf("InsertRoleWithEvent() error = %v", err)
	}

	latest, _ := store.LatestRole(ctx, "u1")
	events, _ := store.ListUserEvents(ctx, "u1")
	if latest == nil || latest.ID != roleID || len(events) != 1 || *events[0].RoleID != roleID {
		t.Errorf("latest = %+v, events = %+v", latest, events)
	}
}

func TestStore_EventsAreCopied(t *testing.T) {
	store := New()
	ctx := context.Background()
	props := map[string]string{"role": "admin"}
	store.AppendEvent(ctx, &core.SystemEvent{ID: "e1", UserID: "u1", Properties: props})
	props["role"] = "changed"

	events, _ := store.ListUserEvents(ctx, "u1")
	if len(events) != 1 || events[0].Properties["role"] != "admin" {
		t.Errorf("events = %+v, want stored properties unaffected", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("AppendEvent should stamp CreatedAt")
	}
}

func TestStore_UpsertSubscriptionKeepsID(t *testing.T) {
	store := New()
	ctx := context.Background()

	first := &core.Subscription{ID: "s1", UserID: "u1", Tier: core.TierPremium}
	store.UpsertSubscription(ctx, first)
	second := &core.Subscription{ID: "s2", UserID: "u1", Tier: core.TierFree}
	store.UpsertSubscription(ctx, second)

	got, err := store.GetSubscription(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if got.ID != "s1" || got.Tier != core.TierFree {
		t.Errorf("subscription = %+v, want id s1 with tier free", got)
	}
}
