package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// FeedPublisher implements the downstream feed over Kafka: quotes keyed by
// symbol on the quotes topic, analysis snapshots on the snapshots topic.
// Consumers live outside this service.
type FeedPublisher struct {
	producer       *pkgkafka.Producer
	quotesTopic    string
	snapshotsTopic string
}

// NewFeedPublisher creates a Kafka feed publisher.
func NewFeedPublisher(producer *pkgkafka.Producer, quotesTopic, snapshotsTopic string) drepo.Publisher {
	return &FeedPublisher{
		producer:       producer,
		quotesTopic:    quotesTopic,
		snapshotsTopic: snapshotsTopic,
	}
}

func (p *FeedPublisher) PublishQuotes(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(quotes))
	for i := range quotes {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(quotes[i].Symbol),
			Value: quotes[i],
		}
	}
	return p.producer.PublishBatch(ctx, p.quotesTopic, msgs)
}

func (p *FeedPublisher) PublishSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	return p.producer.Publish(ctx, p.snapshotsTopic, []byte(snap.Symbol), snap)
}

func (p *FeedPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
