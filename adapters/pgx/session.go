package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/starterp/core"
)

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (*core.Session, error) {
	s := &core.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (a *Adapter) CreateSession(ctx context.Context, session *core.Session) error {
	query := `INSERT INTO public.sessions (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := a.pool.Exec(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.IPAddress, session.UserAgent,
		session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)
	return err
}

func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM public.sessions WHERE token_hash = $1`
	return scanSession(a.pool.QueryRow(ctx, query, tokenHash))
}

func (a *Adapter) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM public.sessions WHERE id = $1`
	return scanSession(a.pool.QueryRow(ctx, query, id))
}

func (a *Adapter) GetUserSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM public.sessions WHERE user_id = $1 ORDER BY created_at`

	rows, err := a.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSession persists the sliding-expiry fields.
func (a *Adapter) UpdateSession(ctx context.Context, session *core.Session) error {
	query := `UPDATE public.sessions SET expires_at = $2, updated_at = $3 WHERE id = $1`

	tag, err := a.pool.Exec(ctx, query, session.ID, session.ExpiresAt, session.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteSessionByID(ctx context.Context, id string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE id = $1`, id)
	return err
}

func (a *Adapter) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (a *Adapter) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (a *Adapter) DeleteExpiredSessions(ctx context.Context) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
