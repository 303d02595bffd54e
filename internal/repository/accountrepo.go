// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/avmikhailov/accountd/internal/model"
)

// AccountRepository provides access to the authoritative account records.
//
// The challenge fields, state, email, password hash and token generation form
// one consistency unit; UpdateAuth writes them together under an optimistic
// version check so concurrent transitions cannot lose updates.
type AccountRepository interface {
	// Create inserts a new account and assigns its id and version.
	Create(ctx context.Context, acc *model.Account) error
	// GetByID loads an account by id.
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	// GetByEmail loads an account by email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// UpdateAuth persists the auth consistency unit if acc.Version still
	// matches the stored row; on success the version advances by one.
	UpdateAuth(ctx context.Context, acc *model.Account) error
	// Delete removes the account and any company it solely owns, in one
	// transaction.
	Delete(ctx context.Context, id int64) error
}

// CompanyRepository provides access to tenant companies.
type CompanyRepository interface {
	// CreateForOwner inserts a company and binds it to the owner account,
	// failing if the account already has a company.
	CreateForOwner(ctx context.Context, c *model.Company) error
	// GetByID loads a company by id.
	GetByID(ctx context.Context, id int64) (*model.Company, error)
}
