package repository

import (
	"context"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
)

// Publisher is the slice of pkg/kafka.Producer the journal publisher needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaJournalPublisher streams ledger mutations to a topic keyed by position id,
// so every record of one position lands on the same partition in order.
type KafkaJournalPublisher struct {
	producer Publisher
	topic    string
}

var _ domrepo.JournalSink = (*KafkaJournalPublisher)(nil)

// NewKafkaJournalPublisher creates a Kafka journal sink.
func NewKafkaJournalPublisher(producer Publisher, topic string) *KafkaJournalPublisher {
	return &KafkaJournalPublisher{producer: producer, topic: topic}
}

func (p *KafkaJournalPublisher) Publish(ctx context.Context, rec models.JournalRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Position.ID), rec)
}

func (p *KafkaJournalPublisher) Name() string { return "kafka" }
