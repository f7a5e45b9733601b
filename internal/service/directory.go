package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/store"
)

// parseDate accepts the loose formats operators type ("2024-03-01",
// "03/01/2024", RFC3339). Blank input means now.
func (s *Service) parseDate(field string, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now(), nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: %w", field, raw, store.ErrInvalidArgument)
	}
	return t.UTC(), nil
}

func (s *Service) CreateDebtor(ctx context.Context, req domain.DebtorCreateRequest) (domain.Debtor, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Debtor{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Debtor{}, invalid("debtor name is required")
	}
	if req.DebtAmount.IsNegative() {
		return domain.Debtor{}, invalid("debt amount must not be negative")
	}
	incurred, err := s.parseDate("date_incurred", req.DateIncurred)
	if err != nil {
		return domain.Debtor{}, err
	}

	created, err := s.repo.CreateDebtor(ctx, domain.Debtor{
		Name:          name,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Address:       strings.TrimSpace(req.Address),
		DebtAmount:    req.DebtAmount,
		DateIncurred:  incurred,
	})
	if err != nil {
		return domain.Debtor{}, err
	}
	s.aggregator.Invalidate(ctx)
	return *created, nil
}

func (s *Service) DeleteDebtor(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteDebtor(ctx, id); err != nil {
		return err
	}
	s.aggregator.Invalidate(ctx)
	return nil
}

func (s *Service) SearchDebtors(ctx context.Context, text string) ([]domain.Debtor, error) {
	return s.repo.SearchDebtors(ctx, text)
}

func (s *Service) CreateVendor(ctx context.Context, req domain.VendorCreateRequest) (domain.Vendor, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Vendor{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Vendor{}, invalid("vendor name is required")
	}
	supplied, err := s.parseDate("date_of_supply", req.DateOfSupply)
	if err != nil {
		return domain.Vendor{}, err
	}

	created, err := s.repo.CreateVendor(ctx, domain.Vendor{
		Name:          name,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Address:       strings.TrimSpace(req.Address),
		CashBalance:   req.CashBalance,
		DateOfSupply:  supplied,
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	s.aggregator.Invalidate(ctx)
	return *created, nil
}

func (s *Service) DeleteVendor(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteVendor(ctx, id); err != nil {
		return err
	}
	s.aggregator.Invalidate(ctx)
	return nil
}

func (s *Service) SearchVendors(ctx context.Context, text string) ([]domain.Vendor, error) {
	return s.repo.SearchVendors(ctx, text)
}

func (s *Service) CreateWorker(ctx context.Context, req domain.WorkerCreateRequest) (domain.Worker, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Worker{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Worker{}, invalid("worker name is required")
	}
	if req.Salary.IsNegative() {
		return domain.Worker{}, invalid("salary must not be negative")
	}
	joined, err := s.parseDate("date_of_joining", req.DateOfJoining)
	if err != nil {
		return domain.Worker{}, err
	}

	created, err := s.repo.CreateWorker(ctx, domain.Worker{
		Name:          name,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Status:        strings.TrimSpace(req.Status),
		Salary:        req.Salary,
		DateOfJoining: joined,
	})
	if err != nil {
		return domain.Worker{}, err
	}
	s.aggregator.Invalidate(ctx)
	return *created, nil
}

func (s *Service) DeleteWorker(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteWorker(ctx, id); err != nil {
		return err
	}
	s.aggregator.Invalidate(ctx)
	return nil
}

func (s *Service) SearchWorkers(ctx context.Context, text string) ([]domain.Worker, error) {
	return s.repo.SearchWorkers(ctx, text)
}
