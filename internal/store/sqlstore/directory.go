package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"utilisoft/backend/internal/domain"
)

func (s *Store) CreateDebtor(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	id, err := s.insertReturningID(ctx, s.db, s.sb.Insert("debtors").SetMap(map[string]any{
		"name":           debtor.Name,
		"contact_number": debtor.ContactNumber,
		"address":        debtor.Address,
		"debt_amount":    debtor.DebtAmount,
		"date_incurred":  debtor.DateIncurred,
	}), "debtor_id")
	if err != nil {
		return nil, fmt.Errorf("insert debtor: %w", err)
	}
	debtor.ID = id
	return &debtor, nil
}

func (s *Store) DeleteDebtor(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "debtors", "debtor_id", id)
}

func (s *Store) SearchDebtors(ctx context.Context, text string) ([]domain.Debtor, error) {
	q := s.sb.Select("debtor_id", "name", "contact_number", "address", "debt_amount", "date_incurred").
		From("debtors").
		OrderBy("name ASC", "debtor_id ASC")
	if text = strings.TrimSpace(text); text != "" {
		q = q.Where(containsAny(likePattern(text), "name", "contact_number", "address"))
	}

	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Debtor, 0, 32)
	for rows.Next() {
		var d domain.Debtor
		if err := rows.Scan(&d.ID, &d.Name, &d.ContactNumber, &d.Address, &d.DebtAmount, &d.DateIncurred); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DebtorStats(ctx context.Context) (domain.AmountStats, error) {
	return s.amountStats(ctx, "debtors", "debt_amount")
}

func (s *Store) CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	id, err := s.insertReturningID(ctx, s.db, s.sb.Insert("vendors").SetMap(map[string]any{
		"name":           vendor.Name,
		"contact_number": vendor.ContactNumber,
		"address":        vendor.Address,
		"cash_balance":   vendor.CashBalance,
		"date_of_supply": vendor.DateOfSupply,
	}), "vendor_id")
	if err != nil {
		return nil, fmt.Errorf("insert vendor: %w", err)
	}
	vendor.ID = id
	return &vendor, nil
}

func (s *Store) DeleteVendor(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "vendors", "vendor_id", id)
}

func (s *Store) SearchVendors(ctx context.Context, text string) ([]domain.Vendor, error) {
	q := s.sb.Select("vendor_id", "name", "contact_number", "address", "cash_balance", "date_of_supply").
		From("vendors").
		OrderBy("name ASC", "vendor_id ASC")
	if text = strings.TrimSpace(text); text != "" {
		q = q.Where(containsAny(likePattern(text), "name", "contact_number", "address"))
	}

	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Vendor, 0, 32)
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.ContactNumber, &v.Address, &v.CashBalance, &v.DateOfSupply); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) VendorStats(ctx context.Context) (domain.AmountStats, error) {
	return s.amountStats(ctx, "vendors", "cash_balance")
}

func (s *Store) CreateWorker(ctx context.Context, worker domain.Worker) (*domain.Worker, error) {
	id, err := s.insertReturningID(ctx, s.db, s.sb.Insert("workers").SetMap(map[string]any{
		"name":            worker.Name,
		"contact_number":  worker.ContactNumber,
		"email":           worker.Email,
		"status":          worker.Status,
		"salary":          worker.Salary,
		"date_of_joining": worker.DateOfJoining,
	}), "worker_id")
	if err != nil {
		return nil, fmt.Errorf("insert worker: %w", err)
	}
	worker.ID = id
	return &worker, nil
}

func (s *Store) DeleteWorker(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "workers", "worker_id", id)
}

func (s *Store) SearchWorkers(ctx context.Context, text string) ([]domain.Worker, error) {
	q := s.sb.Select("worker_id", "name", "contact_number", "email", "status", "salary", "date_of_joining").
		From("workers").
		OrderBy("name ASC", "worker_id ASC")
	if text = strings.TrimSpace(text); text != "" {
		q = q.Where(containsAny(likePattern(text), "name", "contact_number", "email", "status"))
	}

	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Worker, 0, 32)
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.ContactNumber, &w.Email, &w.Status, &w.Salary, &w.DateOfJoining); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) WorkerStats(ctx context.Context) (domain.AmountStats, error) {
	return s.amountStats(ctx, "workers", "salary")
}

func (s *Store) amountStats(ctx context.Context, table string, column string) (domain.AmountStats, error) {
	row, err := s.queryRow(ctx, s.db, s.sb.Select("COUNT(*)", fmt.Sprintf("COALESCE(SUM(%s), 0)", column)).From(table))
	if err != nil {
		return domain.AmountStats{}, err
	}
	var stats domain.AmountStats
	if err := row.Scan(&stats.Count, &stats.Total); err != nil {
		return domain.AmountStats{}, fmt.Errorf("%s stats: %w", table, err)
	}
	return stats, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	id, err := s.insertReturningID(ctx, s.db, s.sb.Insert("users").SetMap(map[string]any{
		"username":   user.Username,
		"password":   user.Password,
		"role":       user.Role,
		"active":     user.Active,
		"created_at": user.CreatedAt,
	}), "user_id")
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.query(ctx, s.db, s.sb.Select("user_id", "username", "password", "role", "active", "created_at").
		From("users").
		OrderBy("user_id ASC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
