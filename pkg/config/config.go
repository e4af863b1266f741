package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MarketPulse/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`
	Logger      struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Providers struct {
		Finnhub struct {
			Enabled        bool          `yaml:"enabled" default:"true"`
			APIKey         string        `yaml:"api_key"`
			BaseURL        string        `yaml:"base_url" default:"https://finnhub.io/api/v1"`
			WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
			MinInterval    time.Duration `yaml:"min_interval" default:"500ms"`
			Timeout        time.Duration `yaml:"timeout" default:"5s"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		} `yaml:"finnhub"`
		AlphaVantage struct {
			Enabled     bool          `yaml:"enabled" default:"true"`
			APIKey      string        `yaml:"api_key"`
			BaseURL     string        `yaml:"base_url" default:"https://www.alphavantage.co"`
			MinInterval time.Duration `yaml:"min_interval" default:"12s"`
			Timeout     time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"alphavantage"`
		Yahoo struct {
			Enabled     bool          `yaml:"enabled" default:"true"`
			BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			MinInterval time.Duration `yaml:"min_interval" default:"2s"`
			Timeout     time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"yahoo"`
	} `yaml:"providers"`
	Collector struct {
		Symbols        []string      `yaml:"symbols"`
		SourceDelay    time.Duration `yaml:"source_delay" default:"300ms"`
		SymbolDelay    time.Duration `yaml:"symbol_delay" default:"200ms"`
		MaxConcurrent  int           `yaml:"max_concurrent" default:"10" validate:"gte=1,lte=64"`
		UseMockData    bool          `yaml:"use_mock_data"`
		FallbackToMock bool          `yaml:"fallback_to_mock" default:"true"`
	} `yaml:"collector"`
	Cache struct {
		QuoteTTL     time.Duration `yaml:"quote_ttl" default:"60s" validate:"gt=0"`
		SeriesTTL    time.Duration `yaml:"series_ttl" default:"5m" validate:"gt=0"`
		LastKnownTTL time.Duration `yaml:"last_known_ttl" default:"1h"`
		KeyPrefix    string        `yaml:"key_prefix" default:"marketpulse"`
		Memory       struct {
			MaxEntries      int           `yaml:"max_entries" default:"10000"`
			CleanupInterval time.Duration `yaml:"cleanup_interval" default:"60s"`
		} `yaml:"memory"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Synthetic struct {
		MaxStepPct    float64       `yaml:"max_step_pct" default:"0.02" validate:"gt=0,lt=1"`
		TrendPeriod   time.Duration `yaml:"trend_period" default:"6h"`
		ContinuityTTL time.Duration `yaml:"continuity_ttl" default:"30m"`
	} `yaml:"synthetic"`
	Analysis struct {
		MinWindow       int     `yaml:"min_window" default:"50" validate:"gte=2"`
		RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
		MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gte=1"`
		MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gte=2"`
		MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
		BollingerWindow int     `yaml:"bollinger_window" default:"20" validate:"gte=2"`
		BollingerK      float64 `yaml:"bollinger_k" default:"2.0" validate:"gt=0"`
		SMAShort        int     `yaml:"sma_short" default:"20" validate:"gte=2"`
		SMALong         int     `yaml:"sma_long" default:"50" validate:"gte=2"`
		VolumeWindow    int     `yaml:"volume_window" default:"20" validate:"gte=2"`
		Anomaly         struct {
			VolumeMultiplier   float64 `yaml:"volume_multiplier" default:"2.0" validate:"gt=1"`
			PriceChangePct     float64 `yaml:"price_change_pct" default:"5.0" validate:"gt=0"`
			PriceChangeHighPct float64 `yaml:"price_change_high_pct" default:"10.0" validate:"gt=0"`
			RSIHigh            float64 `yaml:"rsi_high" default:"80" validate:"gt=50,lte=100"`
			RSILow             float64 `yaml:"rsi_low" default:"20" validate:"gte=0,lt=50"`
			WindowSize         int     `yaml:"window_size" default:"20" validate:"gte=5"`
			Contamination      float64 `yaml:"contamination" default:"0.1" validate:"gt=0,lt=0.5"`
		} `yaml:"anomaly"`
		Trend struct {
			RSIOverbought float64 `yaml:"rsi_overbought" default:"70" validate:"gt=50,lte=100"`
			RSIOversold   float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lt=50"`
		} `yaml:"trend"`
		Signal struct {
			RSIWeight       float64 `yaml:"rsi_weight" default:"0.3" validate:"gte=0.2,lte=0.4"`
			MACDWeight      float64 `yaml:"macd_weight" default:"0.3" validate:"gte=0.2,lte=0.4"`
			BollingerWeight float64 `yaml:"bollinger_weight" default:"0.2" validate:"gte=0.2,lte=0.4"`
		} `yaml:"signal"`
		Levels struct {
			Separation          int     `yaml:"separation" default:"5" validate:"gte=1"`
			ProminencePct       float64 `yaml:"prominence_pct" default:"1.0" validate:"gt=0"`
			ClusterTolerancePct float64 `yaml:"cluster_tolerance_pct" default:"1.0" validate:"gt=0"`
			MaxLevels           int     `yaml:"max_levels" default:"5" validate:"gte=1"`
			FibWindow           int     `yaml:"fib_window" default:"50" validate:"gte=2"`
		} `yaml:"levels"`
		Regime struct {
			Window         int     `yaml:"window" default:"20" validate:"gte=5"`
			VolQuantile    float64 `yaml:"vol_quantile" default:"0.75" validate:"gt=0,lt=1"`
			TrendThreshold float64 `yaml:"trend_threshold" default:"0.6" validate:"gt=0,lt=1"`
		} `yaml:"regime"`
	} `yaml:"analysis"`
	Stream struct {
		Enabled         bool          `yaml:"enabled"`
		BufferSize      int           `yaml:"buffer_size" default:"1000"`
		FlushInterval   time.Duration `yaml:"flush_interval" default:"200ms"`
		ThrottlePerSym  time.Duration `yaml:"throttle_per_symbol" default:"500ms"`
		PublishToFeed   bool          `yaml:"publish_to_feed" default:"true"`
		MaxPriceAgeSkew time.Duration `yaml:"max_price_age_skew" default:"5m"`
	} `yaml:"stream"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		QuotesTopic    string   `yaml:"quotes_topic" default:"marketpulse.quotes"`
		SnapshotsTopic string   `yaml:"snapshots_topic" default:"marketpulse.snapshots"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1,lte=32"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"marketpulse:queue"`
	} `yaml:"queue"`
	Monitor struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval" default:"60s" validate:"gte=1s"`
		Period   string        `yaml:"period" default:"3mo"`
		Calendar struct {
			Enabled    bool   `yaml:"enabled" default:"true"`
			MIC        string `yaml:"mic" default:"XNYS"`
			AlwaysOpen bool   `yaml:"always_open"`
		} `yaml:"calendar"`
	} `yaml:"monitor"`
}

// Load reads and parses a YAML configuration file. Defaults are applied
// before parsing so absent keys keep their declared values.
func Load(path string) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads the YAML file and then applies environment overrides,
// re-validating afterwards so a bad override fails startup the same way a
// bad file does.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Environment wins over the file for anything deploy-specific.
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Collector.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("USE_MOCK_DATA"); v != "" {
		c.Collector.UseMockData = util.ParseBoolDefault(v, c.Collector.UseMockData)
	}
	if v := os.Getenv("FALLBACK_TO_MOCK"); v != "" {
		c.Collector.FallbackToMock = util.ParseBoolDefault(v, c.Collector.FallbackToMock)
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		c.Cache.QuoteTTL = util.ParseDurationDefault(v, c.Cache.QuoteTTL)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Validate runs the struct tags plus the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !c.Collector.UseMockData &&
		!c.Providers.Finnhub.Enabled &&
		!c.Providers.AlphaVantage.Enabled &&
		!c.Providers.Yahoo.Enabled {
		return fmt.Errorf("no provider enabled and use_mock_data is false")
	}
	if len(c.Collector.Symbols) == 0 {
		return fmt.Errorf("collector.symbols cannot be empty")
	}
	if c.Providers.Finnhub.Enabled && c.Providers.Finnhub.APIKey == "" {
		return fmt.Errorf("providers.finnhub.api_key is required when enabled")
	}
	if c.Providers.AlphaVantage.Enabled && c.Providers.AlphaVantage.APIKey == "" {
		return fmt.Errorf("providers.alphavantage.api_key is required when enabled")
	}
	if c.Analysis.MACDFast >= c.Analysis.MACDSlow {
		return fmt.Errorf("analysis.macd_fast must be below macd_slow")
	}
	if c.Analysis.SMAShort >= c.Analysis.SMALong {
		return fmt.Errorf("analysis.sma_short must be below sma_long")
	}
	if c.Analysis.Anomaly.PriceChangeHighPct < c.Analysis.Anomaly.PriceChangePct {
		return fmt.Errorf("analysis.anomaly.price_change_high_pct must be >= price_change_pct")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Cache.Redis.Enabled {
		return fmt.Errorf("queue requires cache.redis to be enabled")
	}
	if c.Stream.Enabled && !c.Providers.Finnhub.Enabled {
		return fmt.Errorf("stream requires providers.finnhub to be enabled")
	}
	return nil
}
