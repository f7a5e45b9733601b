package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin    = "admin"
	RoleSalesman = "salesman"
)

type Product struct {
	ID        int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SaleItem is a candidate sale line. Name, category, price and Available are
// snapshots taken when the product was picked; only the committer consults
// live stock.
type SaleItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Available   int             `json:"available"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// ItemFromProduct snapshots p as a one-unit sale line.
func ItemFromProduct(p Product) SaleItem {
	return SaleItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Category:    p.Category,
		UnitPrice:   p.Price,
		Quantity:    1,
		Available:   p.Quantity,
		TotalPrice:  p.Price,
	}
}

type SaleRecord struct {
	ID           int64           `json:"sales_id"`
	SalesmanID   int64           `json:"salesman_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	QuantitySold int             `json:"quantity_sold"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	SaleDate     time.Time       `json:"sale_date"`
}

// SaleReceipt describes one successful commit.
type SaleReceipt struct {
	CommitID    string          `json:"commit_id"`
	OperatorID  int64           `json:"operator_id"`
	Records     []SaleRecord    `json:"records"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CommittedAt time.Time       `json:"committed_at"`
}

type Debtor struct {
	ID            int64           `json:"debtor_id"`
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Address       string          `json:"address"`
	DebtAmount    decimal.Decimal `json:"debt_amount"`
	DateIncurred  time.Time       `json:"date_incurred"`
}

type Vendor struct {
	ID            int64           `json:"vendor_id"`
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Address       string          `json:"address"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	DateOfSupply  time.Time       `json:"date_of_supply"`
}

type Worker struct {
	ID            int64           `json:"worker_id"`
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Email         string          `json:"email"`
	Status        string          `json:"status"`
	Salary        decimal.Decimal `json:"salary"`
	DateOfJoining time.Time       `json:"date_of_joining"`
}

type CatalogStats struct {
	Count      int64 `json:"count"`
	TotalStock int64 `json:"total_stock"`
}

type LedgerStats struct {
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AmountStats is a count plus the sum of an entity's money column.
type AmountStats struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type DashboardStats struct {
	Sales       LedgerStats  `json:"sales"`
	Products    CatalogStats `json:"products"`
	Debtors     AmountStats  `json:"debtors"`
	Vendors     AmountStats  `json:"vendors"`
	Workers     AmountStats  `json:"workers"`
	GeneratedAt time.Time    `json:"generated_at"`
}

type UserAccount struct {
	ID        int64     `json:"user_id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

type ProductCreateRequest struct {
	Name     string          `json:"product_name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
}

type DebtorCreateRequest struct {
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Address       string          `json:"address"`
	DebtAmount    decimal.Decimal `json:"debt_amount"`
	DateIncurred  string          `json:"date_incurred"`
}

type VendorCreateRequest struct {
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Address       string          `json:"address"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	DateOfSupply  string          `json:"date_of_supply"`
}

type WorkerCreateRequest struct {
	Name          string          `json:"name"`
	ContactNumber string          `json:"contact_number"`
	Email         string          `json:"email"`
	Status        string          `json:"status"`
	Salary        decimal.Decimal `json:"salary"`
	DateOfJoining string          `json:"date_of_joining"`
}

type CartAddRequest struct {
	ProductID int64 `json:"product_id"`
}

type CartView struct {
	Lines    []SaleItem      `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	Selected int             `json:"selected"`
}

type CheckoutRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
