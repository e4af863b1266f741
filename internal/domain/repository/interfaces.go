package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// QuoteSource is one provider adapter in the fallback chain. Tier is the
// base confidence assigned to quotes it returns. Implementations classify
// failures with the models.ProviderError taxonomy and never return a
// non-positive or NaN price as success.
type QuoteSource interface {
	Name() string
	Tier() float64
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
	FetchSeries(ctx context.Context, symbol string, period Period) (*models.Series, error)
}

// MarketStream is a live quote feed used to keep the cache warm.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits collected quotes and analysis snapshots to the downstream
// feed. Consumers live outside this repo.
type Publisher interface {
	PublishQuotes(ctx context.Context, quotes []models.Quote) error
	PublishSnapshot(ctx context.Context, snap *models.MarketSnapshot) error
	Close() error
}

// Metrics records collection and cache observations.
type Metrics interface {
	RecordFetch(provider, outcome string)
	RecordFetchLatency(provider string, seconds float64)
	RecordFallback(stage string)
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordBatchSize(n int)
	RecordStreamQuote(symbol string)
}

// MarketClock answers whether a venue is trading at t.
type MarketClock interface {
	IsOpen(t time.Time) bool
}
