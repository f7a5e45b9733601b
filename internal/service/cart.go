package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"utilisoft/backend/internal/cart"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/store"
)

func (s *Service) session(ctx context.Context) (*sale.Session, domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID <= 0 {
		return nil, domain.Actor{}, sale.ErrNotAuthenticated
	}
	return s.sessions.Get(sessionKey(actor)), actor, nil
}

func (s *Service) ViewCart(ctx context.Context) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	return sess.View(), nil
}

// AddToCart snapshots the product as it is now and merges it into the
// operator's cart.
func (s *Service) AddToCart(ctx context.Context, req domain.CartAddRequest) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	product, err := s.repo.FindProduct(ctx, req.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.CartView{}, &sale.ProductNotFoundError{ProductID: req.ProductID}
	}
	if err != nil {
		return domain.CartView{}, err
	}

	item := domain.ItemFromProduct(*product)
	err = sess.Mutate(func(c *cart.Cart) error {
		_, err := c.AddOrIncrement(item)
		return err
	})
	if err != nil {
		return domain.CartView{}, err
	}
	return sess.View(), nil
}

func (s *Service) IncrementLine(ctx context.Context, index int) (domain.CartView, error) {
	return s.mutateCart(ctx, func(c *cart.Cart) error { return c.IncrementLine(index) })
}

func (s *Service) DecrementLine(ctx context.Context, index int) (domain.CartView, error) {
	return s.mutateCart(ctx, func(c *cart.Cart) error { return c.DecrementLine(index) })
}

// RemoveLine reports ErrLineNotFound for an index the cart does not have so
// a stale client learns its view is out of date.
func (s *Service) RemoveLine(ctx context.Context, index int) (domain.CartView, error) {
	return s.mutateCart(ctx, func(c *cart.Cart) error {
		if index < 0 || index >= c.Len() {
			return cart.ErrLineNotFound
		}
		c.RemoveLine(index)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context) (domain.CartView, error) {
	return s.mutateCart(ctx, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) mutateCart(ctx context.Context, fn func(c *cart.Cart) error) (domain.CartView, error) {
	sess, _, err := s.session(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	if err := sess.Mutate(fn); err != nil {
		return domain.CartView{}, err
	}
	return sess.View(), nil
}

// Checkout commits the operator's cart. On failure the cart is left exactly
// as it was so the operator can fix it and retry.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.SaleReceipt, error) {
	started := time.Now()
	receipt, err := s.checkout(ctx, strings.TrimSpace(req.IdempotencyKey))
	for _, hook := range s.hooks {
		hook(err, time.Since(started))
	}
	return receipt, err
}

func (s *Service) checkout(ctx context.Context, key string) (domain.SaleReceipt, error) {
	sess, actor, err := s.session(ctx)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	receipt, err := sess.Checkout(ctx, actor.UserID, key)
	if err != nil {
		event := logger.Warn(ctx)
		if errors.Is(err, sale.ErrWriteFailed) {
			event = logger.Error(ctx)
		}
		event.Err(err).
			Int64("operator_id", actor.UserID).
			Str("idempotency_key", key).
			Msg("checkout rejected")
		return domain.SaleReceipt{}, err
	}

	logger.Info(ctx).
		Str("commit_id", receipt.CommitID).
		Int64("operator_id", receipt.OperatorID).
		Int("lines", len(receipt.Records)).
		Str("total", receipt.TotalAmount.StringFixed(2)).
		Msg("sale committed")
	return receipt, nil
}
