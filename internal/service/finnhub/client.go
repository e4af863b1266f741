package finnhub

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	xhttp "MarketPulse/pkg/http"
)

const name = "finnhub"

// Client implements a QuoteSource backed by the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	tier    float64
	http    *xhttp.Client
}

// NewClient creates a Finnhub REST client.
func NewClient(apiKey, baseURL string, timeout time.Duration, tier float64) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		tier:    tier,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return name }

// Tier returns the base confidence for quotes from this provider.
func (c *Client) Tier() float64 { return c.tier }

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// FetchQuote retrieves the current quote for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var resp quoteResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/quote",
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"token":  {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}

	if resp.Current <= 0 || math.IsNaN(resp.Current) {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("non-positive price %v for %s", resp.Current, symbol))
	}

	ts := time.Unix(resp.Timestamp, 0).UTC()
	if resp.Timestamp == 0 {
		ts = time.Now().UTC()
	}

	return &models.Quote{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         resp.Current,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Source:        name,
		Confidence:    c.tier,
	}, nil
}

type candleResponse struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Status    string    `json:"s"`
	Timestamp []int64   `json:"t"`
	Volume    []float64 `json:"v"`
}

// FetchSeries retrieves daily OHLCV bars covering period.
func (c *Client) FetchSeries(ctx context.Context, symbol string, period repository.Period) (*models.Series, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -period.Days())

	var resp candleResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {fmt.Sprintf("%d", from.Unix())},
			"to":         {fmt.Sprintf("%d", to.Unix())},
			"token":      {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}

	if resp.Status != "ok" {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("candle status %q for %s", resp.Status, symbol))
	}
	n := len(resp.Timestamp)
	if n == 0 || len(resp.Close) != n || len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Volume) != n {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("ragged candle arrays for %s", symbol))
	}

	bars := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		if resp.Close[i] <= 0 || math.IsNaN(resp.Close[i]) {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   time.Unix(resp.Timestamp[i], 0).UTC().Truncate(24 * time.Hour),
			Open:   resp.Open[i],
			High:   resp.High[i],
			Low:    resp.Low[i],
			Close:  resp.Close[i],
			Volume: resp.Volume[i],
		})
	}

	series := &models.Series{Symbol: symbol, Bars: bars}
	if err := series.Validate(); err != nil {
		return nil, models.NewProviderError(name, models.ErrInvalidData, err)
	}
	return series, nil
}

// classify maps transport failures onto the provider error taxonomy.
// Cancellation passes through untouched so callers can stop cleanly.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		kind := models.ClassifyStatus(se.StatusCode)
		if kind == models.ErrRateLimited {
			return models.NewRateLimited(name, se.RetryAfter, err)
		}
		return models.NewProviderError(name, kind, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewProviderError(name, models.ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.NewProviderError(name, models.ErrTimeout, err)
	}
	if models.HasThrottleSignature(err) {
		return models.NewRateLimited(name, 0, err)
	}
	return models.NewProviderError(name, models.ErrUnavailable, err)
}
