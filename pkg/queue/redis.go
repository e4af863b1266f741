package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"MarketPulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// QueueMode selects which halves of the queue a process runs.
type QueueMode int

const (
	// ModeProducerConsumer publishes and consumes in the same process.
	ModeProducerConsumer QueueMode = iota
	// ModeProducerOnly publishes but never runs workers.
	ModeProducerOnly
	// ModeConsumerOnly runs workers but rejects publishes.
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	}
	return "producer-consumer"
}

const (
	popTimeout         = time.Second
	retrySweepInterval = 5 * time.Second
)

// RedisQueue is a Redis-backed job queue. Pending messages live in a list,
// scheduled retries in a sorted set scored by due time, and messages that
// exhausted their retries in a dead-letter list.
type RedisQueue struct {
	log  *logger.Logger
	cfg  *QueueConfig
	rdb  *redis.Client
	mode QueueMode

	keyPrefix string
	mainKey   string
	retryKey  string
	deadKey   string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

// NewRedisQueue creates a queue over an existing Redis client. The client is
// shared, not owned; closing it is the caller's business.
func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, rdb *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		log:       lgr,
		cfg:       cfg,
		rdb:       rdb,
		mode:      mode,
		keyPrefix: "marketpulse:queue",
		jobs:      make(map[string]Job),
		stopCh:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	rq.mainKey = rq.keyPrefix + ":messages"
	rq.retryKey = rq.keyPrefix + ":retry"
	rq.deadKey = rq.keyPrefix + ":dlq"
	return rq
}

// RegisterJobs registers a batch of job handlers.
func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, j := range jobs {
		r.RegisterJob(j)
	}
}

// RegisterJob registers one job handler keyed by its message type.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.log.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies the Redis connection and, in consumer modes, launches the
// worker pool and the retry sweeper.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if r.mode == ModeProducerOnly {
		r.log.Info("redis publisher started",
			logger.String("addr", r.rdb.Options().Addr))
		return nil
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.sweepRetries()

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("addr", r.rdb.Options().Addr),
		logger.String("mode", r.mode.String()))
	return nil
}

// Stop drains the workers, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.log.Info("stopping redis queue")
	r.cancel()
	if r.mode != ModeProducerOnly {
		close(r.stopCh)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped gracefully")
		return nil
	}
}

// Enqueue pushes a message onto the pending list. In consumer modes the
// message type must have a registered job, so typos surface at the producer.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly {
		if _, ok := r.jobs[msgType]; !ok {
			return fmt.Errorf("no job registered for type %q", msgType)
		}
	}

	msg := Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.rdb.LPush(ctx, r.mainKey, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.log.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stopCh:
			r.log.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-r.ctx.Done():
			r.log.Info("queue worker cancelled", logger.Int("worker_id", id))
			return
		default:
			msg, ok := r.pop()
			if ok {
				r.dispatch(msg)
			}
		}
	}
}

// pop blocks up to popTimeout for the next pending message.
func (r *RedisQueue) pop() (Message, bool) {
	var msg Message

	res, err := r.rdb.BRPop(r.ctx, popTimeout, r.mainKey).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		default:
			r.log.Error("brpop error", logger.Error(err))
			time.Sleep(time.Second)
		}
		return msg, false
	}
	if len(res) < 2 {
		return msg, false
	}
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("unmarshal message", logger.Error(err))
		return msg, false
	}
	return msg, true
}

func (r *RedisQueue) dispatch(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, normalizePayload(msg.Payload))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.log.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	r.retryOrBury(msg, job, err)
}

// normalizePayload turns a decoded JSON object back into raw JSON so job
// handlers can unmarshal into their own payload types.
func normalizePayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	b, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(b)
}

func (r *RedisQueue) retryOrBury(msg Message, job Job, err error) {
	r.log.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.cfg.RetryLimit {
		r.log.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.bury(msg)
		return
	}

	msg.Attempts++
	due := time.Now().Add(r.cfg.RetryDelay)
	r.scheduleRetry(msg, due)
	r.log.Info("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", due.Format(time.RFC3339)))
}

// scheduleRetry and bury write with a background context so in-flight
// messages still land somewhere durable during shutdown.
func (r *RedisQueue) scheduleRetry(msg Message, due time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.rdb.ZAdd(context.Background(), r.retryKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.rdb.LPush(context.Background(), r.deadKey, data).Err(); err != nil {
		r.log.Error("lpush dlq", logger.Error(err))
	}
}

// sweepRetries periodically moves due retries back onto the pending list.
func (r *RedisQueue) sweepRetries() {
	defer r.wg.Done()
	r.log.Info("retry sweeper started")

	ticker := time.NewTicker(retrySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.log.Info("retry sweeper stopping")
			return
		case <-r.ctx.Done():
			r.log.Info("retry sweeper cancelled")
			return
		case <-ticker.C:
			r.requeueDue()
		}
	}
}

func (r *RedisQueue) requeueDue() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := r.rdb.ZRangeByScoreWithScores(r.ctx, r.retryKey, &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.log.Error("fetch retry messages", logger.Error(err))
		return
	}

	for _, z := range due {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		data, ok := z.Member.(string)
		if !ok {
			continue
		}
		// Remove and requeue atomically so a crash never duplicates
		// the message.
		pipe := r.rdb.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey, data)
		pipe.LPush(r.ctx, r.mainKey, data)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error("move retry to queue", logger.Error(err))
		}
	}
}
