package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"

	"utilisoft/backend/internal/domain"
)

func testReceipt() domain.SaleReceipt {
	return domain.SaleReceipt{
		CommitID:   "sale-1",
		OperatorID: 2,
		Records: []domain.SaleRecord{{
			ID:           9,
			SalesmanID:   2,
			ProductID:    1,
			ProductName:  "Basmati Rice 5kg",
			Price:        decimal.RequireFromString("18.50"),
			QuantitySold: 2,
			TotalPrice:   decimal.RequireFromString("37.00"),
		}},
		TotalAmount: decimal.RequireFromString("37.00"),
		CommittedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublishSaleCommittedSendsReceipt(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event SaleCommittedEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeSaleCommitted || event.CommitID != "sale-1" || event.OperatorID != 2 {
			return fmt.Errorf("unexpected event header fields: %+v", event)
		}
		if len(event.Records) != 1 || event.Records[0].QuantitySold != 2 {
			return fmt.Errorf("unexpected records: %+v", event.Records)
		}
		if !event.TotalAmount.Equal(decimal.RequireFromString("37")) {
			return fmt.Errorf("unexpected total %s", event.TotalAmount)
		}
		if event.EventID == "" {
			return errors.New("missing event id")
		}
		return nil
	})

	p := newKafkaPublisher(producer, "sales.committed")
	if err := p.PublishSaleCommitted(context.Background(), testReceipt()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestPublishSaleCommittedReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, "sales.committed")
	err := p.PublishSaleCommitted(context.Background(), testReceipt())
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
}
