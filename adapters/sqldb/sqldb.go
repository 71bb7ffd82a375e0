// Package sqldb stores roles, audit events and subscriptions through
// database/sql on the pgx driver.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lborres/starterp/core"
)

type Store struct {
	db *sql.DB
}

var (
	_ core.AppStorage      = (*Store)(nil)
	_ core.RoleEventWriter = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a database/sql handle on the pgx driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// FromPool shares an existing pgx pool.
func FromPool(pool *pgxpool.Pool) *Store {
	return &Store{db: stdlib.OpenDBFromPool(pool)}
}

func (s *Store) Close() error { return s.db.Close() }

// Roles

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) InsertRole(ctx context.Context, r *core.RoleRecord) error {
	return insertRole(ctx, s.db, r)
}

func insertRole(ctx context.Context, q rowQuerier, r *core.RoleRecord) error {
	return q.QueryRowContext(ctx,
		`insert into user_roles (id, user_id, role) values ($1, $2, $3) returning created_at, updated_at`,
		r.ID, r.UserID, string(r.Role),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

// InsertRoleWithEvent writes the role record and its audit event in one
// transaction.
func (s *Store) InsertRoleWithEvent(ctx context.Context, r *core.RoleRecord, e *core.SystemEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRole(ctx, tx, r); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) LatestRole(ctx context.Context, userID string) (*core.RoleRecord, error) {
	r := &core.RoleRecord{}
	var role string
	err := s.db.QueryRowContext(ctx,
		`select id, user_id, role, created_at, updated_at from user_roles
		 where user_id = $1 order by created_at desc, id desc limit 1`,
		userID,
	).Scan(&r.ID, &r.UserID, &role, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRoleNotFound
		}
		return nil, err
	}
	r.Role = core.UserRole(role)
	return r, nil
}

// ListByRole returns each user's latest record when that record has role.
func (s *Store) ListByRole(ctx context.Context, role core.UserRole) ([]*core.RoleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, role, created_at, updated_at from (
		   select distinct on (user_id) id, user_id, role, created_at, updated_at
		   from user_roles order by user_id, created_at desc, id desc
		 ) latest where role = $1 order by created_at`,
		string(role),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.RoleRecord
	for rows.Next() {
		r := &core.RoleRecord{}
		var name string
		if err := rows.Scan(&r.ID, &r.UserID, &name, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Role = core.UserRole(name)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUserRoles(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Events

func (s *Store) AppendEvent(ctx context.Context, e *core.SystemEvent) error {
	return appendEvent(ctx, s.db, e)
}

func appendEvent(ctx context.Context, q rowQuerier, e *core.SystemEvent) error {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	return q.QueryRowContext(ctx,
		`insert into system_events (id, event_type, user_id, role_id, actor_id, properties, description)
		 values ($1, $2, $3, $4, $5, $6, $7) returning created_at`,
		e.ID, e.EventType, e.UserID, e.RoleID, e.ActorID, props, e.Description,
	).Scan(&e.CreatedAt)
}

func (s *Store) ListUserEvents(ctx context.Context, userID string) ([]*core.SystemEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, event_type, user_id, role_id, actor_id, properties, description, created_at
		 from system_events where user_id = $1 order by created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.SystemEvent
	for rows.Next() {
		e := &core.SystemEvent{}
		var roleID sql.NullString
		var props []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.UserID, &roleID, &e.ActorID, &props, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		if roleID.Valid {
			e.RoleID = &roleID.String
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &e.Properties); err != nil {
				return nil, fmt.Errorf("decode properties of event %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Subscriptions

func (s *Store) GetSubscription(ctx context.Context, userID string) (*core.Subscription, error) {
	sub := &core.Subscription{}
	var tier string
	err := s.db.QueryRowContext(ctx,
		`select id, user_id, tier, created_at, updated_at from subscriptions where user_id = $1`,
		userID,
	).Scan(&sub.ID, &sub.UserID, &tier, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.Tier = core.SubscriptionTier(tier)
	return sub, nil
}

// UpsertSubscription keeps the id of an existing row for the same user.
func (s *Store) UpsertSubscription(ctx context.Context, sub *core.Subscription) error {
	return s.db.QueryRowContext(ctx,
		`insert into subscriptions (id, user_id, tier) values ($1, $2, $3)
		 on conflict (user_id) do update set tier = excluded.tier, updated_at = now()
		 returning id, created_at, updated_at`,
		sub.ID, sub.UserID, string(sub.Tier),
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}
