package yahoo

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

const name = "yahoo"

// Yahoo rejects requests without a browser-looking user agent.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Client implements a QuoteSource backed by the unofficial Yahoo Finance
// chart API. It is keyless, which makes it the natural last real source in
// the fallback chain.
type Client struct {
	baseURL string
	tier    float64
	http    *xhttp.Client
}

// NewClient creates a Yahoo Finance client.
func NewClient(baseURL string, timeout time.Duration, tier float64) *Client {
	return &Client{
		baseURL: baseURL,
		tier:    tier,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return name }

// Tier returns the base confidence for quotes from this provider.
func (c *Client) Tier() float64 { return c.tier }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, symbol, interval, rangeStr string) (*chartResponse, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, symbol),
		Headers: map[string]string{"User-Agent": userAgent},
		QueryParams: map[string][]string{
			"interval":       {interval},
			"range":          {rangeStr},
			"includePrePost": {"false"},
		},
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}

	if resp.Chart.Error != nil {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("empty chart result for %s", symbol))
	}
	return &resp, nil
}

// FetchQuote retrieves the current quote for symbol from chart metadata.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	resp, err := c.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 || math.IsNaN(meta.RegularMarketPrice) {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("non-positive price %v for %s", meta.RegularMarketPrice, symbol))
	}

	ts := time.Unix(meta.RegularMarketTime, 0).UTC()
	if meta.RegularMarketTime == 0 {
		ts = time.Now().UTC()
	}

	change := 0.0
	changePct := 0.0
	if meta.ChartPreviousClose > 0 {
		change = meta.RegularMarketPrice - meta.ChartPreviousClose
		changePct = change / meta.ChartPreviousClose * 100
	}

	return &models.Quote{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePct,
		Source:        name,
		Confidence:    c.tier,
	}, nil
}

// FetchSeries retrieves daily OHLCV bars covering period.
func (c *Client) FetchSeries(ctx context.Context, symbol string, period repository.Period) (*models.Series, error) {
	resp, err := c.fetchChart(ctx, symbol, "1d", string(period))
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("no bars in chart for %s", symbol))
	}

	ohlcv := result.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := deref(ohlcv.Close, i)
		if closePrice <= 0 || math.IsNaN(closePrice) {
			continue // Yahoo pads halted sessions with nulls
		}
		bars = append(bars, models.Bar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   deref(ohlcv.Open, i),
			High:   deref(ohlcv.High, i),
			Low:    deref(ohlcv.Low, i),
			Close:  closePrice,
			Volume: deref(ohlcv.Volume, i),
		})
	}

	series := &models.Series{Symbol: symbol, Bars: bars}
	if err := series.Validate(); err != nil {
		return nil, models.NewProviderError(name, models.ErrInvalidData, err)
	}
	return series, nil
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// classify maps transport failures onto the provider error taxonomy.
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
