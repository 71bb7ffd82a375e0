package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lborres/starterp/core"
)

func TestSubscriptionService(t *testing.T) {
	// Arrange
	store := newFakeStore()
	svc := NewSubscriptionService(store)
	ctx := context.Background()

	// Act & Assert
	tier, err := svc.GetTier(ctx, "user-1")
	if err != nil || tier != core.TierFree {
		t.Fatalf("GetTier() = %q, %v; want free", tier, err)
	}

	first, err := svc.SetTier(ctx, "user-1", core.TierPremium)
	if err != nil {
		t.Fatalf("SetTier() error = %v", err)
	}
	premium, _ := svc.IsPremium(ctx, "user-1")
	if !premium {
		t.Error("user should be premium after SetTier")
	}

	second, _ := svc.SetTier(ctx, "user-1", core.TierFree)
	if second.ID != first.ID {
		t.Error("SetTier should update the existing subscription in place")
	}
}

func TestSubscriptionService_Errors(t *testing.T) {
	store := newFakeStore()
	svc := NewSubscriptionService(store)
	ctx := context.Background()

	if _, err := svc.SetTier(ctx, "user-1", "gold"); !errors.Is(err, core.ErrInvalidTier) {
		t.Errorf("SetTier(gold) error = %v, want ErrInvalidTier", err)
	}
	if _, err := svc.GetTier(ctx, ""); !errors.Is(err, core.ErrUserIDRequired) {
		t.Errorf("GetTier(\"\") error = %v, want ErrUserIDRequired", err)
	}

	store.getSubErr = errors.New("timeout")
	if _, err := svc.IsPremium(ctx, "user-1"); !errors.Is(err, store.getSubErr) {
		t.Errorf("IsPremium() error = %v, want wrapped timeout", err)
	}
}
