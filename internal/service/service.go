package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/stats"
	"utilisoft/backend/internal/store"
	"utilisoft/backend/internal/suggest"
)

var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// CheckoutHook observes every checkout attempt, successful or not.
type CheckoutHook func(err error, took time.Duration)

type Service struct {
	repo       store.Repository
	sessions   *sale.Sessions
	suggester  *suggest.Engine
	aggregator *stats.Aggregator
	hooks      []CheckoutHook
	now        func() time.Time
}

func New(repo store.Repository, sessions *sale.Sessions, suggester *suggest.Engine, aggregator *stats.Aggregator) *Service {
	return &Service{
		repo:       repo,
		sessions:   sessions,
		suggester:  suggester,
		aggregator: aggregator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) OnCheckout(fn CheckoutHook) {
	if fn != nil {
		s.hooks = append(s.hooks, fn)
	}
}

func (s *Service) SearchProducts(ctx context.Context, text string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, text)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) SuggestProducts(ctx context.Context, text string) ([]domain.Product, error) {
	return s.suggester.Suggest(ctx, text)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, invalid("product name is required")
	}
	if req.Price.IsNegative() {
		return domain.Product{}, invalid("price must not be negative")
	}
	if req.Quantity < 0 {
		return domain.Product{}, invalid("quantity must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		Quantity: req.Quantity,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.catalogChanged(ctx)

	logger.Info(ctx).
		Int64("product_id", created.ID).
		Str("product_name", created.Name).
		Int("quantity", created.Quantity).
		Msg("product created")
	return *created, nil
}

// DeleteProduct removes the product row. Ledger rows that reference it are
// kept as they were.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.catalogChanged(ctx)
	logger.Info(ctx).Int64("product_id", id).Msg("product deleted")
	return nil
}

func (s *Service) SearchSales(ctx context.Context, text string, limit int) ([]domain.SaleRecord, error) {
	return s.repo.SearchSales(ctx, text, limit)
}

func (s *Service) Stats(ctx context.Context) (domain.DashboardStats, error) {
	return s.aggregator.Aggregate(ctx)
}

func (s *Service) catalogChanged(ctx context.Context) {
	s.suggester.Invalidate(ctx)
	s.aggregator.Invalidate(ctx)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return sale.ErrNotAuthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func sessionKey(actor domain.Actor) string {
	return "user:" + strconv.FormatInt(actor.UserID, 10)
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, store.ErrInvalidArgument)
}
