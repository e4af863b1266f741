package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer with JSON value encoding and publish
// metrics.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

// Message is one keyed payload for PublishBatch.
type Message struct {
	Key   []byte
	Value interface{}
}

// NewProducer builds a producer from options. Brokers are required,
// everything else has working defaults.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     newBalancer(cfg),
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		Async:        cfg.Async,
	}

	registerProducerMetrics()
	return &Producer{writer: writer, codec: cfg.Compression}, nil
}

// newBalancer picks key-hash partitioning when per-key ordering matters,
// least-bytes otherwise.
func newBalancer(cfg *ProducerConfig) kafka.Balancer {
	if cfg.HashByKey {
		return &kafka.Hash{}
	}
	return &kafka.LeastBytes{}
}

// Publish sends one keyed message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: v,
		Time:  start,
	})
	observePublish(topic, p.codec, int64(len(v)), 1, time.Since(start), err)
	return err
}

// PublishBatch sends the whole batch to topic in one writer call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, batch []Message) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now()
	msgs := make([]kafka.Message, 0, len(batch))
	var totalBytes int64
	for _, m := range batch {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: v,
			Time:  now,
		})
		totalBytes += int64(len(v))
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	observePublish(topic, p.codec, totalBytes, len(batch), time.Since(start), err)
	return err
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// encodeValue passes raw bytes and strings through untouched and JSON
// encodes everything else.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

var compressionCodecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

func parseCompression(s string) kafka.Compression {
	if codec, ok := compressionCodecs[s]; ok {
		return codec
	}
	return kafka.Gzip
}

var (
	producerMetricsOnce sync.Once

	publishTotal   *prometheus.CounterVec
	publishErrors  *prometheus.CounterVec
	publishBytes   *prometheus.CounterVec
	publishSeconds *prometheus.HistogramVec
)

// registerProducerMetrics registers the publish metrics once per process,
// however many producers get built.
func registerProducerMetrics() {
	producerMetricsOnce.Do(func() {
		publishTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_kafka_producer_messages_total",
				Help: "Total messages published to Kafka",
			},
			[]string{"topic", "compression", "result"},
		)
		publishErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_kafka_producer_errors_total",
				Help: "Total producer errors",
			},
			[]string{"topic"},
		)
		publishBytes = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_kafka_producer_bytes_total",
				Help: "Total payload bytes published",
			},
			[]string{"topic", "compression"},
		)
		publishSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_kafka_producer_publish_seconds",
				Help:    "Kafka publish latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}

func observePublish(topic, codec string, bytes int64, count int, dur time.Duration, err error) {
	if publishTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		publishErrors.WithLabelValues(topic).Inc()
	}
	publishTotal.WithLabelValues(topic, codec, outcome).Add(float64(count))
	publishBytes.WithLabelValues(topic, codec).Add(float64(bytes))
	publishSeconds.WithLabelValues(topic).Observe(dur.Seconds())
}
