package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/store"
)

func (s *Store) CreateDebtor(_ context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDebtorID++
	debtor.ID = s.nextDebtorID
	s.debtors[debtor.ID] = debtor
	return &debtor, nil
}

func (s *Store) DeleteDebtor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.debtors[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.debtors, id)
	return nil
}

func (s *Store) SearchDebtors(_ context.Context, text string) ([]domain.Debtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Debtor, 0, len(s.debtors))
	for _, d := range s.debtors {
		if matchesAny(needle, d.Name, d.ContactNumber, d.Address) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.Debtor) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) DebtorStats(_ context.Context) (domain.AmountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AmountStats{Count: int64(len(s.debtors)), Total: decimal.Zero}
	for _, d := range s.debtors {
		stats.Total = stats.Total.Add(d.DebtAmount)
	}
	return stats, nil
}

func (s *Store) CreateVendor(_ context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVendorID++
	vendor.ID = s.nextVendorID
	s.vendors[vendor.ID] = vendor
	return &vendor, nil
}

func (s *Store) DeleteVendor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.vendors, id)
	return nil
}

func (s *Store) SearchVendors(_ context.Context, text string) ([]domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		if matchesAny(needle, v.Name, v.ContactNumber, v.Address) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b domain.Vendor) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) VendorStats(_ context.Context) (domain.AmountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AmountStats{Count: int64(len(s.vendors)), Total: decimal.Zero}
	for _, v := range s.vendors {
		stats.Total = stats.Total.Add(v.CashBalance)
	}
	return stats, nil
}

func (s *Store) CreateWorker(_ context.Context, worker domain.Worker) (*domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWorkerID++
	worker.ID = s.nextWorkerID
	s.workers[worker.ID] = worker
	return &worker, nil
}

func (s *Store) DeleteWorker(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.workers, id)
	return nil
}

func (s *Store) SearchWorkers(_ context.Context, text string) ([]domain.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		if matchesAny(needle, w.Name, w.ContactNumber, w.Email, w.Status) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b domain.Worker) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) WorkerStats(_ context.Context) (domain.AmountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AmountStats{Count: int64(len(s.workers)), Total: decimal.Zero}
	for _, w := range s.workers {
		stats.Total = stats.Total.Add(w.Salary)
	}
	return stats, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return nil, store.ErrConflict
	}
	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.usersByUsername[user.Username] = user
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func matchesAny(needle string, fields ...string) bool {
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if containsFold(f, needle) {
			return true
		}
	}
	return false
}
