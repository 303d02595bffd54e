package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, email, pwd_hash, pwd_salt, state, administrator, company_id, token_generation,
auth_action, auth_code, auth_attempts, auth_expiration, auth_data, version, created_at`

// Create inserts a new account row, including any pending challenge.
func (r *AccountRepo) Create(ctx context.Context, acc *model.Account) error {
	const q = `
INSERT INTO accounts (email, pwd_hash, pwd_salt, state, administrator, token_generation,
auth_action, auth_code, auth_attempts, auth_expiration, auth_data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, version, created_at`
	action, code, attempts, expiration, data := challengeColumns(acc.Challenge)
	row := r.db.Pool.QueryRow(ctx, q,
		acc.Email, acc.PasswordHash, acc.PasswordSalt, acc.State, acc.Administrator, acc.TokenGen,
		action, code, attempts, expiration, data)
	err := row.Scan(&acc.ID, &acc.Version, &acc.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrEmailInUse
	}
	return err
}

// GetByID selects an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts WHERE email=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, email))
}

// UpdateAuth writes the auth consistency unit under an optimistic version
// check. Zero affected rows means a concurrent transition won; the caller
// must reload and retry or fail.
func (r *AccountRepo) UpdateAuth(ctx context.Context, acc *model.Account) error {
	const q = `
UPDATE accounts
SET email=$2, pwd_hash=$3, pwd_salt=$4, state=$5, token_generation=$6,
    auth_action=$7, auth_code=$8, auth_attempts=$9, auth_expiration=$10, auth_data=$11,
    version = version + 1
WHERE id=$1 AND version=$12`
	action, code, attempts, expiration, data := challengeColumns(acc.Challenge)
	tag, err := r.db.Pool.Exec(ctx, q,
		acc.ID, acc.Email, acc.PasswordHash, acc.PasswordSalt, acc.State, acc.TokenGen,
		action, code, attempts, expiration, data, acc.Version)
	if isUniqueViolation(err) {
		return errs.ErrEmailInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrVersionConflict
	}
	acc.Version++
	return nil
}

// Delete removes the account and any company it solely owns in one transaction.
func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM companies WHERE owner_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return tx.Commit(ctx)
}

// challengeColumns flattens an optional challenge into its five columns.
// A nil challenge yields five NULLs, keeping the all-or-nothing invariant
// visible in the schema.
func challengeColumns(ch *model.Challenge) (action *string, code *int32, attempts *int32, expiration *time.Time, data []byte) {
	if ch == nil {
		return nil, nil, nil, nil, nil
	}
	a := string(ch.Action)
	c := int32(ch.Code)
	at := int32(ch.Attempts)
	exp := ch.ExpiresAt
	return &a, &c, &at, &exp, ch.Data
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acc model.Account
	var action *string
	var code, attempts *int32
	var expiration *time.Time
	var data []byte
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.PasswordSalt, &acc.State,
		&acc.Administrator, &acc.CompanyID, &acc.TokenGen,
		&action, &code, &attempts, &expiration, &data, &acc.Version, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	if action != nil {
		acc.Challenge = &model.Challenge{
			Action:    model.AuthAction(*action),
			Code:      int(*code),
			Attempts:  int(*attempts),
			ExpiresAt: *expiration,
			Data:      data,
		}
	}
	return &acc, nil
}
