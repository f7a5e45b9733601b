// Package events publishes committed sales to Kafka so downstream consumers
// (reporting, restock alerts) can follow the ledger without polling it.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"utilisoft/backend/internal/domain"
)

const EventTypeSaleCommitted = "sale.committed"

type SaleCommittedEvent struct {
	EventID     string              `json:"event_id"`
	EventType   string              `json:"event_type"`
	CommitID    string              `json:"commit_id"`
	OperatorID  int64               `json:"operator_id"`
	Records     []domain.SaleRecord `json:"records"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	CommittedAt time.Time           `json:"committed_at"`
	Timestamp   time.Time           `json:"timestamp"`
}

type Publisher interface {
	PublishSaleCommitted(ctx context.Context, receipt domain.SaleReceipt) error
	Close() error
}

type Noop struct{}

func (Noop) PublishSaleCommitted(context.Context, domain.SaleReceipt) error { return nil }

func (Noop) Close() error { return nil }
