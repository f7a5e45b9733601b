package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/xid"
)

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka publisher initialized")

	return newKafkaPublisher(producer, topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PublishSaleCommitted sends one message per receipt, keyed by operator so a
// salesman's sales stay ordered within a partition. Trace context travels in
// the message headers.
func (p *KafkaPublisher) PublishSaleCommitted(ctx context.Context, receipt domain.SaleReceipt) error {
	ctx, span := otel.Tracer("utilisoft/events").Start(ctx, "kafka.publish.sale_committed",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.String("event.type", EventTypeSaleCommitted),
			attribute.String("sale.commit_id", receipt.CommitID),
		),
	)
	defer span.End()

	event := SaleCommittedEvent{
		EventID:     xid.New("evt"),
		EventType:   EventTypeSaleCommitted,
		CommitID:    receipt.CommitID,
		OperatorID:  receipt.OperatorID,
		Records:     receipt.Records,
		TotalAmount: receipt.TotalAmount,
		CommittedAt: receipt.CommittedAt,
		Timestamp:   p.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal event failed")
		return fmt.Errorf("marshal sale event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(EventTypeSaleCommitted)},
		{Key: []byte("event_id"), Value: []byte(event.EventID)},
	}
	for key, value := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder("operator_" + strconv.FormatInt(receipt.OperatorID, 10)),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send message failed")
		return fmt.Errorf("send sale event: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	logger.Debug(ctx).
		Str("event_id", event.EventID).
		Str("commit_id", receipt.CommitID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("sale event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
