// Package sale records sales: it re-validates a cart against live stock and
// then writes ledger rows and stock decrements as one unit of work.
package sale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/store"
	"utilisoft/backend/internal/xid"
)

// Store is the slice of the catalog and ledger a Committer needs.
type Store interface {
	FindProduct(ctx context.Context, id int64) (*domain.Product, error)
	WithinSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error
}

// CommitObserver is told about every durable sale. Observers run
// synchronously on the committing goroutine after the unit of work has been
// finalized and are never called for a failed sale.
type CommitObserver func(ctx context.Context, receipt domain.SaleReceipt)

type Committer struct {
	store  Store
	now    func() time.Time
	tracer trace.Tracer

	mu        sync.RWMutex
	observers []CommitObserver
}

func NewCommitter(s Store) *Committer {
	return &Committer{
		store:  s,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("utilisoft/sale"),
	}
}

func (c *Committer) OnCommit(fn CommitObserver) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Commit records items as sold by operatorID.
//
// Every line is first checked against live stock; any failure there returns
// before anything is written. The write phase then inserts one ledger row
// and decrements stock per line, in order, inside a single unit of work that
// ignores cancellation of ctx so it always commits or rolls back fully.
func (c *Committer) Commit(ctx context.Context, items []domain.SaleItem, operatorID int64) (domain.SaleReceipt, error) {
	ctx, span := c.tracer.Start(ctx, "sale.commit", trace.WithAttributes(
		attribute.Int64("sale.operator_id", operatorID),
		attribute.Int("sale.lines", len(items)),
	))
	defer span.End()

	receipt, err := c.commit(ctx, items, operatorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sale commit failed")
		return domain.SaleReceipt{}, err
	}
	span.SetAttributes(attribute.String("sale.commit_id", receipt.CommitID))

	c.mu.RLock()
	observers := c.observers
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx, receipt)
	}
	return receipt, nil
}

func (c *Committer) commit(ctx context.Context, items []domain.SaleItem, operatorID int64) (domain.SaleReceipt, error) {
	if len(items) == 0 {
		return domain.SaleReceipt{}, ErrEmptySale
	}
	if operatorID <= 0 {
		return domain.SaleReceipt{}, ErrNotAuthenticated
	}
	if err := c.validate(ctx, items); err != nil {
		return domain.SaleReceipt{}, err
	}

	wctx := context.WithoutCancel(ctx)
	soldAt := c.now()
	records := make([]domain.SaleRecord, 0, len(items))
	err := c.store.WithinSaleTx(wctx, func(tx store.SaleTx) error {
		records = records[:0]
		for _, item := range items {
			record := domain.SaleRecord{
				SalesmanID:   operatorID,
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				Price:        item.UnitPrice,
				Category:     item.Category,
				QuantitySold: item.Quantity,
				TotalPrice:   item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
				SaleDate:     soldAt,
			}
			id, err := tx.InsertSaleRecord(wctx, record)
			if err != nil {
				return fmt.Errorf("insert sale record for product %d: %w", item.ProductID, err)
			}
			record.ID = id
			if err := tx.DecrementStock(wctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return domain.SaleReceipt{}, &WriteFailedError{Err: err}
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.TotalPrice)
	}
	return domain.SaleReceipt{
		CommitID:    xid.New("sale"),
		OperatorID:  operatorID,
		Records:     records,
		TotalAmount: total,
		CommittedAt: soldAt,
	}, nil
}

// validate checks every line against live stock. Quantities for the same
// product are summed so repeated lines cannot pass individually and then
// fail at write time.
func (c *Committer) validate(ctx context.Context, items []domain.SaleItem) error {
	requested := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		product, err := c.store.FindProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return &ProductNotFoundError{ProductID: item.ProductID}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &WriteFailedError{Err: fmt.Errorf("read stock for product %d: %w", item.ProductID, err)}
		}

		requested[item.ProductID] += item.Quantity
		if product.Quantity < requested[item.ProductID] {
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: requested[item.ProductID],
				Available: product.Quantity,
			}
		}
	}
	return nil
}
