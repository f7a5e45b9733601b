package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/store"
)

var productColumns = []string{"product_id", "product_name", "price", "category", "quantity", "updated_at"}

var saleColumns = []string{"sales_id", "salesman_id", "product_id", "product_name", "price", "category", "quantity_sold", "total_price", "sale_date"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Quantity, &p.UpdatedAt)
	return p, err
}

func scanSale(row rowScanner) (domain.SaleRecord, error) {
	var r domain.SaleRecord
	err := row.Scan(&r.ID, &r.SalesmanID, &r.ProductID, &r.ProductName, &r.Price, &r.Category, &r.QuantitySold, &r.TotalPrice, &r.SaleDate)
	return r, err
}

func (s *Store) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row, err := s.queryRow(ctx, s.db, s.sb.Select(productColumns...).From("products").Where(sq.Eq{"product_id": id}))
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) searchProductsQuery(text string) sq.SelectBuilder {
	q := s.sb.Select(productColumns...).From("products").OrderBy("product_name ASC", "product_id ASC")
	if text = strings.TrimSpace(text); text != "" {
		q = q.Where(containsAny(likePattern(text), "product_name", "category"))
	}
	return q
}

func (s *Store) SearchProducts(ctx context.Context, text string) ([]domain.Product, error) {
	return s.listProducts(ctx, s.searchProductsQuery(text))
}

func (s *Store) suggestProductsQuery(text string, limit int) sq.SelectBuilder {
	q := s.sb.Select(productColumns...).From("products").
		Where(sq.Like{"LOWER(product_name)": likePattern(strings.TrimSpace(text))}).
		Where(sq.Gt{"quantity": 0}).
		OrderBy("product_name ASC", "product_id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (s *Store) SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Product, error) {
	return s.listProducts(ctx, s.suggestProductsQuery(text, limit))
}

func (s *Store) listProducts(ctx context.Context, q sq.SelectBuilder) ([]domain.Product, error) {
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.UpdatedAt = s.now()
	id, err := s.insertReturningID(ctx, s.db, s.sb.Insert("products").SetMap(map[string]any{
		"product_name": product.Name,
		"price":        product.Price,
		"category":     product.Category,
		"quantity":     product.Quantity,
		"updated_at":   product.UpdatedAt,
	}), "product_id")
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	product.ID = id
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "products", "product_id", id)
}

func (s *Store) CatalogStats(ctx context.Context) (domain.CatalogStats, error) {
	row, err := s.queryRow(ctx, s.db, s.sb.Select("COUNT(*)", "COALESCE(SUM(quantity), 0)").From("products"))
	if err != nil {
		return domain.CatalogStats{}, err
	}
	var stats domain.CatalogStats
	if err := row.Scan(&stats.Count, &stats.TotalStock); err != nil {
		return domain.CatalogStats{}, err
	}
	return stats, nil
}

// decrementStockQuery only matches while enough stock remains, so the
// check and the update are one statement.
func (s *Store) decrementStockQuery(productID int64, by int, at time.Time) sq.UpdateBuilder {
	return s.sb.Update("products").
		Set("quantity", sq.Expr("quantity - ?", by)).
		Set("updated_at", at).
		Where(sq.Eq{"product_id": productID}).
		Where(sq.GtOrEq{"quantity": by})
}

func (s *Store) decrementStock(ctx context.Context, r runner, productID int64, by int) error {
	if by < 1 {
		return fmt.Errorf("decrement by %d: %w", by, store.ErrInvalidArgument)
	}
	res, err := s.exec(ctx, r, s.decrementStockQuery(productID, by, s.now()))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	row, err := s.queryRow(ctx, r, s.sb.Select("quantity").From("products").Where(sq.Eq{"product_id": productID}))
	if err != nil {
		return err
	}
	var qty int
	if err := row.Scan(&qty); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return store.ErrInsufficientStock
}

func (s *Store) insertSaleRecord(ctx context.Context, r runner, record domain.SaleRecord) (int64, error) {
	if record.QuantitySold < 1 {
		return 0, fmt.Errorf("quantity sold %d: %w", record.QuantitySold, store.ErrInvalidArgument)
	}
	if record.SaleDate.IsZero() {
		record.SaleDate = s.now()
	}
	return s.insertReturningID(ctx, r, s.sb.Insert("sales").
		Columns(saleColumns[1:]...).
		Values(
			record.SalesmanID,
			record.ProductID,
			record.ProductName,
			record.Price,
			record.Category,
			record.QuantitySold,
			record.TotalPrice,
			record.SaleDate,
		), "sales_id")
}

func (s *Store) WithinSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin sale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(saleTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sale: %w", err)
	}
	return nil
}

func (s *Store) InsertSaleRecord(ctx context.Context, record domain.SaleRecord) (int64, error) {
	return s.insertSaleRecord(ctx, s.db, record)
}

func (s *Store) DecrementStock(ctx context.Context, productID int64, by int) error {
	return s.decrementStock(ctx, s.db, productID, by)
}

type saleTx struct {
	s  *Store
	tx *sql.Tx
}

func (t saleTx) InsertSaleRecord(ctx context.Context, record domain.SaleRecord) (int64, error) {
	return t.s.insertSaleRecord(ctx, t.tx, record)
}

func (t saleTx) DecrementStock(ctx context.Context, productID int64, by int) error {
	return t.s.decrementStock(ctx, t.tx, productID, by)
}

func (s *Store) searchSalesQuery(text string, limit int) sq.SelectBuilder {
	q := s.sb.Select(saleColumns...).From("sales").OrderBy("sale_date DESC", "sales_id DESC")
	if text = strings.TrimSpace(text); text != "" {
		match := containsAny(likePattern(text), "product_name", "category")
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			match = append(match, sq.Eq{"sales_id": n}, sq.Eq{"product_id": n})
		}
		q = q.Where(match)
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (s *Store) SearchSales(ctx context.Context, text string, limit int) ([]domain.SaleRecord, error) {
	rows, err := s.query(ctx, s.db, s.searchSalesQuery(text, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		r, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) LedgerStats(ctx context.Context) (domain.LedgerStats, error) {
	row, err := s.queryRow(ctx, s.db, s.sb.Select("COUNT(*)", "COALESCE(SUM(total_price), 0)").From("sales"))
	if err != nil {
		return domain.LedgerStats{}, err
	}
	var stats domain.LedgerStats
	if err := row.Scan(&stats.Count, &stats.TotalAmount); err != nil {
		return domain.LedgerStats{}, err
	}
	return stats, nil
}
