package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/starterp/core"
)

const userColumns = `id, email, email_verified, name, image, stripe_customer_id, created_at, updated_at`

func (a *Adapter) CreateUser(ctx context.Context, user *core.User) error {
	query := `INSERT INTO public.users (id, email, email_verified, name, image, stripe_customer_id)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at, updated_at`

	err := a.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.EmailVerified, user.Name, user.Image, user.StripeCustomerID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM public.users WHERE id = $1`, id)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM public.users WHERE email = $1`, email)
}

func (a *Adapter) getUser(ctx context.Context, query string, arg string) (*core.User, error) {
	user := &core.User{}
	err := a.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.EmailVerified, &user.Name, &user.Image, &user.StripeCustomerID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (a *Adapter) UpdateUser(ctx context.Context, user *core.User) error {
	query := `UPDATE public.users
	          SET email = $2, email_verified = $3, name = $4, image = $5, stripe_customer_id = $6, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := a.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.EmailVerified, user.Name, user.Image, user.StripeCustomerID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	return nil
}

// DeleteUser removes the user; accounts, sessions and app records cascade.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM public.users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
