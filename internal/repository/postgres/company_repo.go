package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/avmikhailov/accountd/internal/errs"
	"github.com/avmikhailov/accountd/internal/model"
)

// CompanyRepo implements CompanyRepository using PostgreSQL.
type CompanyRepo struct{ db *DB }

// NewCompanyRepo constructs a company repository.
func NewCompanyRepo(db *DB) *CompanyRepo { return &CompanyRepo{db: db} }

// CreateForOwner inserts a company and binds it to the owner account in one
// transaction. The bind only succeeds while company_id is NULL, so an account
// can acquire a company at most once.
func (r *CompanyRepo) CreateForOwner(ctx context.Context, c *model.Company) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const ins = `
INSERT INTO companies (name, owner_id)
VALUES ($1, $2)
RETURNING id, created_at`
	if err := tx.QueryRow(ctx, ins, c.Name, c.OwnerID).Scan(&c.ID, &c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrNameInUse
		}
		return err
	}

	const bind = `
UPDATE accounts
SET company_id = $2
WHERE id = $1 AND company_id IS NULL`
	tag, err := tx.Exec(ctx, bind, c.OwnerID, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrVersionConflict
	}
	return tx.Commit(ctx)
}

// GetByID selects a company by id.
func (r *CompanyRepo) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	const q = `
SELECT id, name, owner_id, created_at
FROM companies WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &c, nil
}
