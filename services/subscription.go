package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

// SubscriptionService tracks the billing tier of each user.
type SubscriptionService struct {
	storage core.SubscriptionStorage
}

func NewSubscriptionService(storage core.SubscriptionStorage) *SubscriptionService {
	return &SubscriptionService{storage: storage}
}

// GetTier returns TierFree for users without a subscription row.
func (s *SubscriptionService) GetTier(ctx context.Context, userID string) (core.SubscriptionTier, error) {
	if userID == "" {
		return "", core.ErrUserIDRequired
	}
	sub, err := s.storage.GetSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrSubscriptionNotFound) {
			return core.TierFree, nil
		}
		return "", fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub.Tier, nil
}

func (s *SubscriptionService) IsPremium(ctx context.Context, userID string) (bool, error) {
	tier, err := s.GetTier(ctx, userID)
	if err != nil {
		return false, err
	}
	return tier == core.TierPremium, nil
}

func (s *SubscriptionService) SetTier(ctx context.Context, userID string, tier core.SubscriptionTier) (*core.Subscription, error) {
	if userID == "" {
		return nil, core.ErrUserIDRequired
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTier, tier)
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription id: %w", err)
	}
	sub := &core.Subscription{ID: id, UserID: userID, Tier: tier}
	if err := s.storage.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	return sub, nil
}
