package synthetic

import (
	"hash/fnv"
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

const (
	// SourceName marks quotes produced by this generator.
	SourceName = "synthetic"

	// Confidence assigned to every synthetic quote. Consumers treat
	// anything below 0.5 as non-alertable.
	Confidence = 0.3

	trendAmplitude = 0.01
	reversionRate  = 0.2
	minPrice       = 0.01
)

// Generator produces deterministic placeholder quotes and series for
// symbols no live provider could serve. Prices are a bounded mean-reverting
// walk around a per-symbol baseline plus a slow sinusoidal trend, so long
// outages degrade into plausible-looking data instead of flatlines or jumps.
type Generator struct {
	continuity  *ContinuityCache
	maxStepPct  float64
	trendPeriod time.Duration
}

// Option configures Generator.
type Option func(*Generator)

// WithMaxStepPct bounds the per-quote price step as a fraction of the
// previous price.
func WithMaxStepPct(pct float64) Option {
	return func(g *Generator) {
		if pct > 0 {
			g.maxStepPct = pct
		}
	}
}

// WithTrendPeriod sets the period of the sinusoidal trend term.
func WithTrendPeriod(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.trendPeriod = d
		}
	}
}

// NewGenerator creates a generator backed by the given continuity cache.
func NewGenerator(continuity *ContinuityCache, opts ...Option) *Generator {
	g := &Generator{
		continuity:  continuity,
		maxStepPct:  0.02,
		trendPeriod: 6 * time.Hour,
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seed derives the per-symbol 64-bit seed. FNV-1a keeps the derivation
// stable across processes and platforms.
func Seed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

// noise maps (seed, n) onto a deterministic value in [-1, 1).
func noise(seed, n uint64) float64 {
	x := seed + n*0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return float64(x>>11)/float64(1<<52) - 1
}

// basePrice maps the seed into a plausible [20, 500) baseline.
func basePrice(seed uint64) float64 {
	return 20 + float64(seed%48000)/100
}

// trendAt is the slow market trend term at wall-clock time at.
func (g *Generator) trendAt(seed uint64, base float64, at time.Time) float64 {
	period := g.trendPeriod.Seconds()
	phase := 2 * math.Pi * (math.Mod(float64(at.Unix()), period)/period + float64(seed%997)/997)
	return base * trendAmplitude * math.Sin(phase)
}

// Quote produces the next synthetic quote for symbol at time at. When a
// continuity anchor exists the price steps from it, clamped to maxStepPct,
// pulled toward the baseline trend. Without an anchor the price starts on
// the baseline directly.
func (g *Generator) Quote(symbol string, at time.Time) *models.Quote {
	seed := Seed(symbol)
	base := basePrice(seed)
	target := base + g.trendAt(seed, base, at)

	prev, _, anchored := g.continuity.Last(symbol)
	var price float64
	if anchored {
		step := (target-prev)*reversionRate + prev*g.maxStepPct*0.5*noise(seed, uint64(at.Unix()))
		if limit := prev * g.maxStepPct; step > limit {
			step = limit
		} else if step < -limit {
			step = -limit
		}
		price = prev + step
	} else {
		price = target * (1 + 0.005*noise(seed, uint64(at.Unix())))
		prev = price
	}
	if price < minPrice {
		price = minPrice
	}

	volume := math.Floor(200_000 + 800_000*math.Abs(noise(seed, uint64(at.Unix())*2+1)))

	change := price - prev
	changePct := 0.0
	if prev > 0 {
		changePct = change / prev * 100
	}

	g.continuity.Remember(symbol, price, at)

	return &models.Quote{
		Symbol:        symbol,
		Timestamp:     at,
		Price:         price,
		Volume:        volume,
		Change:        change,
		ChangePercent: changePct,
		Source:        SourceName,
		Confidence:    Confidence,
	}
}

// Series produces a deterministic daily OHLCV history for symbol ending at
// the day of now. It never touches the continuity cache, so repeated calls
// within one day return identical bars.
func (g *Generator) Series(symbol string, period repository.Period, now time.Time) *models.Series {
	n := period.Bars()
	seed := Seed(symbol)
	base := basePrice(seed)

	day := now.UTC().Truncate(24 * time.Hour)
	start := day.AddDate(0, 0, -(n - 1))

	bars := make([]models.Bar, 0, n)
	price := base
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i)
		idx := uint64(date.Unix() / 86400)

		// A slow cycle over roughly 30 bars stands in for the market trend.
		cycle := 2 * math.Pi * (float64(i)/30 + float64(seed%997)/997)
		target := base * (1 + trendAmplitude*math.Sin(cycle))

		step := (target-price)*reversionRate + price*g.maxStepPct*0.5*noise(seed, idx*4)
		if limit := price * g.maxStepPct; step > limit {
			step = limit
		} else if step < -limit {
			step = -limit
		}

		open := price
		price += step
		if price < minPrice {
			price = minPrice
		}

		high := math.Max(open, price) * (1 + 0.004*math.Abs(noise(seed, idx*4+1)))
		low := math.Min(open, price) * (1 - 0.004*math.Abs(noise(seed, idx*4+2)))
		volume := math.Floor(200_000 + 800_000*math.Abs(noise(seed, idx*4+3)))

		bars = append(bars, models.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: volume,
		})
	}

	return &models.Series{Symbol: symbol, Bars: bars}
}
