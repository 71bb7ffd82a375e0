package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/starterp/core"
)

const accountColumns = `id, user_id, provider_id, account_id, password, access_token, refresh_token, expires_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*core.Account, error) {
	acc := &core.Account{}
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.ProviderID, &acc.AccountID, &acc.Password, &acc.AccessToken, &acc.RefreshToken, &acc.ExpiresAt, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

func (a *Adapter) CreateAccount(ctx context.Context, acc *core.Account) error {
	query := `INSERT INTO public.accounts (id, user_id, provider_id, account_id, password, access_token, refresh_token, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`

	return a.pool.QueryRow(ctx, query,
		acc.ID, acc.UserID, acc.ProviderID, acc.AccountID, acc.Password, acc.AccessToken, acc.RefreshToken, acc.ExpiresAt,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)
}

func (a *Adapter) GetAccountByID(ctx context.Context, id string) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM public.accounts WHERE id = $1`
	return scanAccount(a.pool.QueryRow(ctx, query, id))
}

func (a *Adapter) GetAccountByProviderAccountID(ctx context.Context, providerID, accountID string) (*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM public.accounts WHERE provider_id = $1 AND account_id = $2`
	return scanAccount(a.pool.QueryRow(ctx, query, providerID, accountID))
}

func (a *Adapter) GetAccountByUserAndProvider(ctx context.Context, userID, providerID string) ([]*core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM public.accounts WHERE user_id = $1 AND provider_id = $2 ORDER BY created_at`

	rows, err := a.pool.Query(ctx, query, userID, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*core.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (a *Adapter) UpdateAccount(ctx context.Context, acc *core.Account) error {
	query := `UPDATE public.accounts
	          SET password = $2, access_token = $3, refresh_token = $4, expires_at = $5, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := a.pool.QueryRow(ctx, query,
		acc.ID, acc.Password, acc.AccessToken, acc.RefreshToken, acc.ExpiresAt,
	).Scan(&acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrAccountNotFound
	}
	return err
}

func (a *Adapter) DeleteAccount(ctx context.Context, id string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.accounts WHERE id = $1`, id)
	return err
}
