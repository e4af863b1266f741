package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/util"
)

const name = "alphavantage"

// Client implements a QuoteSource backed by the Alpha Vantage REST API.
// Alpha Vantage reports throttling as HTTP 200 bodies carrying a "Note" or
// "Information" field, so both paths feed the rate-limited classification.
type Client struct {
	apiKey  string
	baseURL string
	tier    float64
	http    *xhttp.Client
}

// NewClient creates an Alpha Vantage client.
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

type globalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	LatestDay     string `json:"07. latest trading day"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

type globalQuoteResponse struct {
	Quote        globalQuote `json:"Global Quote"`
	Note         string      `json:"Note"`
	Information  string      `json:"Information"`
	ErrorMessage string      `json:"Error Message"`
}

// FetchQuote retrieves the latest quote for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var resp globalQuoteResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/query",
		QueryParams: map[string][]string{
			"function": {"GLOBAL_QUOTE"},
			"symbol":   {symbol},
			"apikey":   {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	if err := bodyError(resp.Note, resp.Information, resp.ErrorMessage); err != nil {
		return nil, err
	}

	price, err := strconv.ParseFloat(resp.Quote.Price, 64)
	if err != nil || price <= 0 || math.IsNaN(price) {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("bad price %q for %s", resp.Quote.Price, symbol))
	}

	ts := time.Now().UTC()
	if day, ok := util.ParseDay(resp.Quote.LatestDay); ok {
		ts = day
	}

	change, _ := strconv.ParseFloat(resp.Quote.Change, 64)
	changePct, _ := strconv.ParseFloat(strings.TrimSuffix(resp.Quote.ChangePercent, "%"), 64)
	volume, _ := strconv.ParseFloat(resp.Quote.Volume, 64)

	return &models.Quote{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         price,
		Volume:        volume,
		Change:        change,
		ChangePercent: changePct,
		Source:        name,
		Confidence:    c.tier,
	}, nil
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailySeriesResponse struct {
	Series       map[string]dailyBar `json:"Time Series (Daily)"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	ErrorMessage string              `json:"Error Message"`
}

// FetchSeries retrieves daily OHLCV bars covering period.
func (c *Client) FetchSeries(ctx context.Context, symbol string, period repository.Period) (*models.Series, error) {
	outputSize := "compact" // most recent 100 bars
	if period.Days() > 100 {
		outputSize = "full"
	}

	var resp dailySeriesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/query",
		QueryParams: map[string][]string{
			"function":   {"TIME_SERIES_DAILY"},
			"symbol":     {symbol},
			"outputsize": {outputSize},
			"apikey":     {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, classify(err)
	}
	if err := bodyError(resp.Note, resp.Information, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if len(resp.Series) == 0 {
		return nil, models.NewProviderError(name, models.ErrInvalidData,
			fmt.Errorf("empty daily series for %s", symbol))
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -period.Days())

	days := make([]string, 0, len(resp.Series))
	for day := range resp.Series {
		days = append(days, day)
	}
	sort.Strings(days)

	bars := make([]models.Bar, 0, len(days))
	for _, day := range days {
		date, ok := util.ParseDay(day)
		if !ok || date.Before(cutoff) {
			continue
		}

		raw := resp.Series[day]
		closePrice, err := strconv.ParseFloat(raw.Close, 64)
		if err != nil || closePrice <= 0 {
			continue
		}
		open, _ := strconv.ParseFloat(raw.Open, 64)
		high, _ := strconv.ParseFloat(raw.High, 64)
		low, _ := strconv.ParseFloat(raw.Low, 64)
		volume, _ := strconv.ParseFloat(raw.Volume, 64)

		bars = append(bars, models.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	series := &models.Series{Symbol: symbol, Bars: bars}
	if err := series.Validate(); err != nil {
		return nil, models.NewProviderError(name, models.ErrInvalidData, err)
	}
	return series, nil
}

// bodyError interprets Alpha Vantage's in-band error fields.
func bodyError(note, information, errorMessage string) error {
	if note != "" {
		return models.NewRateLimited(name, 0, errors.New(note))
	}
	if information != "" {
		return models.NewRateLimited(name, 0, errors.New(information))
	}
	if errorMessage != "" {
		return models.NewProviderError(name, models.ErrInvalidData, errors.New(errorMessage))
	}
	return nil
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
