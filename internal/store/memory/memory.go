package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/store"
)

// Store keeps every table in process memory behind one RWMutex. A sale
// unit of work holds the write lock for its whole duration and restores a
// snapshot when it fails.
type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	sales           []domain.SaleRecord
	debtors         map[int64]domain.Debtor
	vendors         map[int64]domain.Vendor
	workers         map[int64]domain.Worker
	usersByUsername map[string]domain.UserAccount

	nextProductID int64
	nextSaleID    int64
	nextDebtorID  int64
	nextVendorID  int64
	nextWorkerID  int64
	nextUserID    int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		products:        map[int64]domain.Product{},
		debtors:         map[int64]domain.Debtor{},
		vendors:         map[int64]domain.Vendor{},
		workers:         map[int64]domain.Worker{},
		usersByUsername: map[string]domain.UserAccount{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_SALESMAN_PASSWORD; the fallbacks are only
// meant for local runs without a database.
func (s *Store) seedUsers() {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	salesmanPwd := envOr("SEED_SALESMAN_PASSWORD", "salesman123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SALESMAN_PASSWORD") == "" {
		logger.Logger.Warn().
			Str("component", "memory-store").
			Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_SALESMAN_PASSWORD to override")
	}

	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"salesman", salesmanPwd, domain.RoleSalesman},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Logger.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		s.nextUserID++
		s.usersByUsername[u.username] = domain.UserAccount{
			ID:        s.nextUserID,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: s.now(),
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	for _, p := range []struct {
		name     string
		price    string
		category string
		qty      int
	}{
		{"Basmati Rice 5kg", "18.50", "Groceries", 40},
		{"Cooking Oil 1L", "4.25", "Groceries", 60},
		{"Green Tea 100 bags", "6.90", "Beverages", 25},
		{"Instant Coffee 200g", "7.80", "Beverages", 18},
		{"LED Bulb 9W", "2.10", "Electronics", 120},
		{"USB-C Cable 1m", "5.00", "Electronics", 35},
		{"Dish Soap 750ml", "3.15", "Household", 48},
		{"Laundry Powder 2kg", "9.40", "Household", 0},
		{"Notebook A5", "1.75", "Stationery", 200},
		{"Ballpoint Pen Blue", "0.45", "Stationery", 500},
	} {
		s.nextProductID++
		s.products[s.nextProductID] = domain.Product{
			ID:        s.nextProductID,
			Name:      p.name,
			Price:     decimal.RequireFromString(p.price),
			Category:  p.category,
			Quantity:  p.qty,
			UpdatedAt: s.now(),
		}
	}
	s.seedUsers()
	return s
}

func (s *Store) FindProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SearchProducts(_ context.Context, text string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if needle == "" || containsFold(p.Name, needle) || containsFold(p.Category, needle) {
			out = append(out, p)
		}
	}
	sortProductsByName(out)
	return out, nil
}

func (s *Store) SuggestProducts(_ context.Context, text string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.Quantity > 0 && containsFold(p.Name, needle) {
			out = append(out, p)
		}
	}
	sortProductsByName(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	product.ID = s.nextProductID
	product.UpdatedAt = s.now()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CatalogStats(_ context.Context) (domain.CatalogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.CatalogStats{Count: int64(len(s.products))}
	for _, p := range s.products {
		stats.TotalStock += int64(p.Quantity)
	}
	return stats, nil
}

func (s *Store) WithinSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := maps.Clone(s.products)
	salesLen := len(s.sales)
	nextSaleID := s.nextSaleID

	if err := fn(memTx{s: s}); err != nil {
		s.products = products
		s.sales = s.sales[:salesLen]
		s.nextSaleID = nextSaleID
		return err
	}
	return nil
}

func (s *Store) InsertSaleRecord(ctx context.Context, record domain.SaleRecord) (int64, error) {
	var id int64
	err := s.WithinSaleTx(ctx, func(tx store.SaleTx) error {
		var err error
		id, err = tx.InsertSaleRecord(ctx, record)
		return err
	})
	return id, err
}

func (s *Store) DecrementStock(ctx context.Context, productID int64, by int) error {
	return s.WithinSaleTx(ctx, func(tx store.SaleTx) error {
		return tx.DecrementStock(ctx, productID, by)
	})
}

// memTx runs with s.mu already held for writing.
type memTx struct {
	s *Store
}

func (t memTx) InsertSaleRecord(_ context.Context, record domain.SaleRecord) (int64, error) {
	if record.QuantitySold < 1 {
		return 0, fmt.Errorf("quantity sold %d: %w", record.QuantitySold, store.ErrInvalidArgument)
	}
	t.s.nextSaleID++
	record.ID = t.s.nextSaleID
	if record.SaleDate.IsZero() {
		record.SaleDate = t.s.now()
	}
	t.s.sales = append(t.s.sales, record)
	return record.ID, nil
}

func (t memTx) DecrementStock(_ context.Context, productID int64, by int) error {
	if by < 1 {
		return fmt.Errorf("decrement by %d: %w", by, store.ErrInvalidArgument)
	}
	p, ok := t.s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.Quantity < by {
		return store.ErrInsufficientStock
	}
	p.Quantity -= by
	p.UpdatedAt = t.s.now()
	t.s.products[productID] = p
	return nil
}

func (s *Store) SearchSales(_ context.Context, text string, limit int) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	numeric, numErr := strconv.ParseInt(needle, 10, 64)
	out := make([]domain.SaleRecord, 0)
	for _, r := range s.sales {
		match := needle == "" || containsFold(r.ProductName, needle) || containsFold(r.Category, needle)
		if !match && numErr == nil {
			match = r.ID == numeric || r.ProductID == numeric
		}
		if match {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.SaleRecord) int {
		return cmp.Or(b.SaleDate.Compare(a.SaleDate), cmp.Compare(b.ID, a.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LedgerStats(_ context.Context) (domain.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.LedgerStats{Count: int64(len(s.sales)), TotalAmount: decimal.Zero}
	for _, r := range s.sales {
		stats.TotalAmount = stats.TotalAmount.Add(r.TotalPrice)
	}
	return stats, nil
}

func sortProductsByName(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}

// containsFold reports whether s contains needle, which must already be
// lower-cased.
func containsFold(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}
