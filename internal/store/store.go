package store

import (
	"context"
	"errors"

	"utilisoft/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Catalog owns product records.
type Catalog interface {
	// FindProduct returns ErrNotFound when no product has the id.
	FindProduct(ctx context.Context, id int64) (*domain.Product, error)
	// SearchProducts matches text case-insensitively against name and
	// category, ordered by name. Empty text lists every product.
	SearchProducts(ctx context.Context, text string) ([]domain.Product, error)
	// SuggestProducts returns in-stock products whose name contains text.
	SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CatalogStats(ctx context.Context) (domain.CatalogStats, error)
}

// SaleTx is the write side of one atomic sale. Every call made through a
// SaleTx is either persisted together or not at all.
type SaleTx interface {
	InsertSaleRecord(ctx context.Context, record domain.SaleRecord) (int64, error)
	// DecrementStock lowers quantity-on-hand by `by` only if enough stock
	// remains. It returns ErrInsufficientStock when it would go negative and
	// ErrNotFound when the product is gone.
	DecrementStock(ctx context.Context, productID int64, by int) error
}

// Ledger owns sale records.
type Ledger interface {
	// WithinSaleTx runs fn in one unit of work. An error from fn, or from
	// finalizing, rolls back everything fn wrote.
	WithinSaleTx(ctx context.Context, fn func(tx SaleTx) error) error
	InsertSaleRecord(ctx context.Context, record domain.SaleRecord) (int64, error)
	DecrementStock(ctx context.Context, productID int64, by int) error
	SearchSales(ctx context.Context, text string, limit int) ([]domain.SaleRecord, error)
	LedgerStats(ctx context.Context) (domain.LedgerStats, error)
}

type Debtors interface {
	CreateDebtor(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error)
	DeleteDebtor(ctx context.Context, id int64) error
	SearchDebtors(ctx context.Context, text string) ([]domain.Debtor, error)
	DebtorStats(ctx context.Context) (domain.AmountStats, error)
}

type Vendors interface {
	CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error)
	DeleteVendor(ctx context.Context, id int64) error
	SearchVendors(ctx context.Context, text string) ([]domain.Vendor, error)
	VendorStats(ctx context.Context) (domain.AmountStats, error)
}

type Workers interface {
	CreateWorker(ctx context.Context, worker domain.Worker) (*domain.Worker, error)
	DeleteWorker(ctx context.Context, id int64) error
	SearchWorkers(ctx context.Context, text string) ([]domain.Worker, error)
	WorkerStats(ctx context.Context) (domain.AmountStats, error)
}

type Users interface {
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type Repository interface {
	Catalog
	Ledger
	Debtors
	Vendors
	Workers
	Users
}
