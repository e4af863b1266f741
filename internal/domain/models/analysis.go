package models

// Trend directions.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Signal actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Anomaly types.
const (
	AnomalyVolumeSpike = "volume_spike"
	AnomalyPriceSpike  = "price_spike"
	AnomalyRSIExtreme  = "rsi_extreme"
	AnomalyML          = "ml_anomaly"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Market regimes.
const (
	RegimeTrendingHighVol = "trending_high_vol"
	RegimeTrendingLowVol  = "trending_low_vol"
	RegimeRangingHighVol  = "ranging_high_vol"
	RegimeRangingLowVol   = "ranging_low_vol"
	RegimeUnknown         = "unknown"
)

// IndicatorSet holds indicator columns parallel to the source series.
// Every slice has the series length; entries before an indicator's window
// is satisfied are NaN, never absent.
type IndicatorSet struct {
	Length     int
	Close      []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	BBUpper    []float64
	BBMiddle   []float64
	BBLower    []float64
	SMAShort   []float64
	SMALong    []float64
	EMAFast    []float64
	EMASlow    []float64
	OBV        []float64
	VolumeSMA  []float64
}

// TrendAnalysis is the majority-vote trend classification.
type TrendAnalysis struct {
	Trend               string
	Strength            float64
	ContributingSignals []string
}

// Anomaly is one detection event. Fresh per analysis pass; dedup belongs
// to the alerting layer downstream.
type Anomaly struct {
	Type         string
	Severity     string
	Message      string
	CurrentValue float64
	Threshold    float64
	Confidence   float64
}

// Signal is the composite trading signal with its weighted evidence.
type Signal struct {
	Action     string
	Confidence float64
	Reasons    []string
	BuyScore   float64
	SellScore  float64
}

// SupportResistanceLevel is one clustered price level.
type SupportResistanceLevel struct {
	Price           float64
	TouchCount      int
	StrengthPercent float64
}

// SupportResistance holds the top levels on each side of the last close.
type SupportResistance struct {
	Support    []SupportResistanceLevel
	Resistance []SupportResistanceLevel
}

// FibLevel is one retracement level.
type FibLevel struct {
	Label string
	Price float64
}

// FibonacciLevels holds retracement levels from the lookback high/low range
// plus the level nearest the last close.
type FibonacciLevels struct {
	High               float64
	Low                float64
	Levels             []FibLevel
	Nearest            FibLevel
	NearestDistancePct float64
}

// MarketRegime classifies volatility/trend state over the trailing window.
type MarketRegime struct {
	Regime        string
	Confidence    float64
	Volatility    float64
	TrendStrength float64
}

// MarketSnapshot is the full analysis output for one series.
// It carries no wall-clock field so analysis stays deterministic.
type MarketSnapshot struct {
	Symbol    string
	Trend     TrendAnalysis
	Anomalies []Anomaly
	Signal    Signal
	Levels    SupportResistance
	Fibonacci FibonacciLevels
	Regime    MarketRegime
}
