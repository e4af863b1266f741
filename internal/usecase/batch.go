package usecase

import (
	"context"
	"sync"

	"MarketPulse/internal/domain/models"
)

// zeroQuoteMsg is the per-symbol error recorded when the fallback chain
// bottomed out at the zero sentinel.
const zeroQuoteMsg = "no data from any source"

// CollectMany fetches quotes for symbols sequentially with an inter-symbol
// delay, preserving input order. Failed symbols land in Errors; the batch
// itself never fails.
func (c *Collector) CollectMany(ctx context.Context, symbols []string) *models.BatchResult {
	c.metrics.RecordBatchSize(len(symbols))

	res := &models.BatchResult{
		Quotes: make([]models.Quote, 0, len(symbols)),
		Errors: map[string]string{},
	}

	for i, sym := range symbols {
		if i > 0 && !c.pause(ctx, c.symbolDelay) {
			for _, rest := range symbols[i:] {
				res.Errors[rest] = ctx.Err().Error()
			}
			break
		}
		q := c.GetQuote(ctx, sym)
		if q.IsZero() {
			res.Errors[sym] = zeroQuoteMsg
			continue
		}
		res.Quotes = append(res.Quotes, *q)
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

// CollectManyAsync fans symbols out over a bounded worker pool. Each fetch
// still goes through the shared rate limiter, so concurrency raises overlap
// across providers, not the per-provider call rate. Results come back in
// input order.
func (c *Collector) CollectManyAsync(ctx context.Context, symbols []string) *models.BatchResult {
	c.metrics.RecordBatchSize(len(symbols))

	quotes := make([]*models.Quote, len(symbols))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			quotes[i] = c.GetQuote(ctx, sym)
		}(i, sym)
	}
	wg.Wait()

	res := &models.BatchResult{
		Quotes: make([]models.Quote, 0, len(symbols)),
		Errors: map[string]string{},
	}
	for i, q := range quotes {
		if q.IsZero() {
			res.Errors[symbols[i]] = zeroQuoteMsg
			continue
		}
		res.Quotes = append(res.Quotes, *q)
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}
