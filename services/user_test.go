package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lborres/starterp/core"
)

func TestUserService_EnsureUser(t *testing.T) {
	// Arrange
	stack := newTestStack()
	ctx := context.Background()

	// Act
	first, created, err := stack.users.EnsureUser(ctx, "admin@example.com", "password123", "")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	second, createdAgain, err := stack.users.EnsureUser(ctx, "ADMIN@example.com", "different-pass", "")

	// Assert
	if err != nil {
		t.Fatalf("second EnsureUser() error = %v", err)
	}
	if !created || createdAgain {
		t.Errorf("created flags = %v, %v; want true, false", created, createdAgain)
	}
	if first.ID != second.ID {
		t.Error("EnsureUser should return the existing user")
	}
	if first.Name != "admin" {
		t.Errorf("name = %q, want email local part", first.Name)
	}
}

// Requirement: OAuth sign-in reuses a linked account, links to an existing
// user by email, or creates a new user.
func TestUserService_UpsertUserFromOAuth(t *testing.T) {
	token := "access"
	tests := []struct {
		name        string
		seedEmail   string
		seedLinked  bool
		profile     OAuthProfile
		wantNewUser bool
		wantErr     error
	}{
		{
			name:        "new user",
			profile:     OAuthProfile{ProviderID: "google", AccountID: "g-1", Email: "new@example.com", EmailVerified: true},
			wantNewUser: true,
		},
		{
			name:      "links existing email user",
			seedEmail: "known@example.com",
			profile:   OAuthProfile{ProviderID: "google", AccountID: "g-2", Email: "Known@example.com"},
		},
		{
			name:       "reuses linked account",
			seedEmail:  "linked@example.com",
			seedLinked: true,
			profile:    OAuthProfile{ProviderID: "google", AccountID: "g-3", Email: "linked@example.com", AccessToken: &token},
		},
		{
			name:    "missing account id",
			profile: OAuthProfile{ProviderID: "google", Email: "x@example.com"},
			wantErr: core.ErrUserIDRequired,
		},
		{
			name:    "invalid email",
			profile: OAuthProfile{ProviderID: "google", AccountID: "g-4", Email: "nope"},
			wantErr: core.ErrInvalidEmail,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			stack := newTestStack()
			ctx := context.Background()
			var seeded *core.User
			if test.seedEmail != "" {
				seeded, _ = stack.users.CreateUser(ctx, test.seedEmail, "password123", "", nil)
			}
			if test.seedLinked {
				if _, err := stack.users.UpsertUserFromOAuth(ctx, OAuthProfile{ProviderID: "google", AccountID: "g-3", Email: test.seedEmail}); err != nil {
					t.Fatalf("seed link error = %v", err)
				}
			}

			// Act
			user, err := stack.users.UpsertUserFromOAuth(ctx, test.profile)

			// Assert
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("UpsertUserFromOAuth() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr != nil {
				return
			}
			if test.wantNewUser {
				if !user.EmailVerified {
					t.Error("verified flag should carry over to new users")
				}
			} else if user.ID != seeded.ID {
				t.Errorf("user = %q, want seeded %q", user.ID, seeded.ID)
			}
			accounts, _ := stack.store.GetAccountByUserAndProvider(ctx, user.ID, "google")
			if len(accounts) != 1 {
				t.Fatalf("google accounts = %d, want 1", len(accounts))
			}
			if test.profile.AccessToken != nil && (accounts[0].AccessToken == nil || *accounts[0].AccessToken != token) {
				t.Error("linked account tokens should be refreshed")
			}
		})
	}
}

func TestUserService_GetUserByID(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	if _, err := stack.users.GetUserByID(ctx, ""); !errors.Is(err, core.ErrUserIDRequired) {
		t.Errorf("empty id error = %v", err)
	}
	if _, err := stack.users.GetUserByID(ctx, "missing"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("missing id error = %v", err)
	}
}
