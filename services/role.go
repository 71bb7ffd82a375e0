package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lborres/starterp/core"
	"github.com/lborres/starterp/pkg/crypto"
)

// RoleService reads and assigns user roles and records every change as a
// system event.
type RoleService struct {
	roles  core.RoleStorage
	events core.EventStorage
	logger *slog.Logger
}

var _ RoleLookup = (*RoleService)(nil)

func NewRoleService(roles core.RoleStorage, events core.EventStorage, logger *slog.Logger) *RoleService {
	return &RoleService{
		roles:  roles,
		events: events,
		logger: logger.With("component", "UserRoleService"),
	}
}

// GetUserRole returns the user's current role, or RoleUser when none was
// ever assigned.
func (s *RoleService) GetUserRole(ctx context.Context, userID string) (core.UserRole, error) {
	if userID == "" {
		return "", core.ErrUserIDRequired
	}

	record, err := s.roles.LatestRole(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrRoleNotFound) {
			return core.RoleUser, nil
		}
		s.logger.Error("failed to get user role", "userId", userID, "error", err)
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return record.Role, nil
}

// SetUserRole inserts a new role record for the user and appends a
// user_role_created event. An empty actorID means the user acted on itself.
//
// When the role storage implements core.RoleEventWriter the record and event
// are written atomically. Otherwise the record is inserted first, and a failed
// event append is reported after the role has already changed.
func (s *RoleService) SetUserRole(ctx context.Context, userID string, role core.UserRole, actorID string) (*core.RoleRecord, error) {
	if userID == "" {
		return nil, core.ErrUserIDRequired
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidRole, role)
	}
	if actorID == "" {
		actorID = userID
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate role id: %w", err)
	}
	record := &core.RoleRecord{ID: id, UserID: userID, Role: role}
	event := newRoleEvent(core.EventUserRoleCreated, userID, &record.ID, actorID, map[string]string{
		"role": string(role),
	})

	if w, ok := s.roles.(core.RoleEventWriter); ok {
		if err := w.InsertRoleWithEvent(ctx, record, event); err != nil {
			s.logger.Error("failed to set user role", "userId", userID, "role", role, "error", err)
			return nil, fmt.Errorf("failed to set user role: %w", err)
		}
	} else {
		if err := s.roles.InsertRole(ctx, record); err != nil {
			s.logger.Error("failed to set user role", "userId", userID, "role", role, "error", err)
			return nil, fmt.Errorf("failed to set user role: %w", err)
		}
		if err := s.appendEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user role set", "userId", userID, "role", role, "actorId", actorID)
	return record, nil
}

// RemoveUserRole drops every role record of the user, returning them to the
// default role.
func (s *RoleService) RemoveUserRole(ctx context.Context, userID, actorID string) error {
	if userID == "" {
		return core.ErrUserIDRequired
	}
	if actorID == "" {
		actorID = userID
	}

	current, err := s.GetUserRole(ctx, userID)
	if err != nil {
		return err
	}

	n, err := s.roles.DeleteUserRoles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user role: %w", err)
	}
	if n == 0 {
		return nil
	}

	return s.appendEvent(ctx, newRoleEvent(core.EventUserRoleRemoved, userID, nil, actorID, map[string]string{
		"removedRole": string(current),
	}))
}

func (s *RoleService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	role, err := s.GetUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == core.RoleAdmin, nil
}

func (s *RoleService) GetAdminUsers(ctx context.Context) ([]core.AdminUser, error) {
	records, err := s.roles.ListByRole(ctx, core.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}

	admins := make([]core.AdminUser, 0, len(records))
	for _, r := range records {
		admins = append(admins, core.AdminUser{
			ID:        r.ID,
			UserID:    r.UserID,
			Role:      r.Role,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return admins, nil
}

// History lists the role events recorded for a user, oldest first.
func (s *RoleService) History(ctx context.Context, userID string) ([]*core.SystemEvent, error) {
	if userID == "" {
		return nil, core.ErrUserIDRequired
	}
	return s.events.ListUserEvents(ctx, userID)
}

func newRoleEvent(eventType, userID string, roleID *string, actorID string, props map[string]string) *core.SystemEvent {
	return &core.SystemEvent{
		ID:          crypto.NewEventID(),
		EventType:   eventType,
		UserID:      userID,
		RoleID:      roleID,
		ActorID:     actorID,
		Properties:  props,
		Description: describeRoleEvent(eventType, props),
	}
}

func (s *RoleService) appendEvent(ctx context.Context, event *core.SystemEvent) error {
	if err := s.events.AppendEvent(ctx, event); err != nil {
		s.logger.Error("failed to record role event", "eventType", event.EventType, "userId", event.UserID, "error", err)
		return fmt.Errorf("failed to record role event: %w", err)
	}
	return nil
}

func describeRoleEvent(eventType string, props map[string]string) string {
	switch eventType {
	case core.EventUserRoleCreated:
		return fmt.Sprintf("User role set to %s", props["role"])
	case core.EventUserRoleUpdated:
		return fmt.Sprintf("User role updated from %s to %s", props["previousRole"], props["newRole"])
	case core.EventUserRoleRemoved:
		return fmt.Sprintf("User role %s removed", props["removedRole"])
	default:
		return fmt.Sprintf("User role event: %s", eventType)
	}
}
