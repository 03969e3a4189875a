package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/leaseline/lead-gateway/pkg/redis"
)

// Job is one queued unit of work read from the stream. Delivery IDs come
// from redis; the payload and metadata are whatever the publisher wrote.
type Job struct {
	ID         string
	Payload    []byte
	Metadata   map[string]string
	EnqueuedAt time.Time
	Attempts   int
	acked      bool
	queue      *Queue
}

// Ack marks the job as successfully processed.
func (j *Job) Ack() error {
	if j.acked {
		return fmt.Errorf("job already acknowledged")
	}
	j.acked = true
	return j.queue.ack(j.ID)
}

// Handler processes one job. A nil return acknowledges the job; an error
// leaves it pending so the visibility timeout redelivers it.
type Handler func(ctx context.Context, job *Job) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a durable job queue on a redis stream with a consumer group.
// Jobs survive consumer crashes: unacked deliveries sit in the group's
// pending list until another consumer claims them.
type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Stats struct {
	TotalJobs     int64
	PendingJobs   int64
	ConsumerCount int64
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on an existing group is fine.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

// Publish appends a job to the stream and returns its delivery ID.
func (q *Queue) Publish(ctx context.Context, payload []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"payload":  string(payload),
		"enqueued": time.Now().Unix(),
		"attempts": 0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publish job: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}

	return id, nil
}

// PublishJSON marshals payload before publishing.
func (q *Queue) PublishJSON(ctx context.Context, payload interface{}, metadata map[string]string) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}
	return q.Publish(ctx, data, metadata)
}

// Consume starts the poll loop. Jobs are acked when the handler returns nil.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNewJobs()
			q.claimStuckJobs()
		}
	}
}

func (q *Queue) readNewJobs() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		q.handleJob(q.toJob(streamMsg))
	}
}

// claimStuckJobs takes over deliveries another consumer left pending longer
// than the visibility timeout.
func (q *Queue) claimStuckJobs() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var stale []string
	deliveries := make(map[string]int64)
	for _, p := range pendingExt {
		if p.Idle >= q.config.VisibilityTimeout {
			stale = append(stale, p.ID)
			deliveries[p.ID] = p.RetryCount
		}
	}
	if len(stale) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		stale...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		job := q.toJob(streamMsg)
		// The group's delivery counter survives consumer crashes; the
		// stream field written at publish time never moves past zero.
		job.Attempts = int(deliveries[streamMsg.ID])
		q.handleJob(job)
	}
}

func (q *Queue) handleJob(job *Job) {
	if job.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetter(job)
		_ = q.ack(job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, job); err != nil {
		// Leave the delivery pending for redelivery.
		logger.Warn("job handler failed", "queue", q.config.Name, "job", job.ID, "attempts", job.Attempts, "error", err)
		return
	}
	if !job.acked {
		_ = q.ack(job.ID)
	}
}

func (q *Queue) ack(jobID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, jobID)
}

func (q *Queue) moveToDeadLetter(job *Job) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"payload":        string(job.Payload),
		"original_id":    job.ID,
		"attempts":       job.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range job.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(q.config.Name+":dlq", values); err != nil {
		logger.Error("dead letter publish failed", "queue", q.config.Name, "job", job.ID, "error", err)
	}
}

func (q *Queue) toJob(streamMsg redis.StreamMessage) *Job {
	job := &Job{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "payload":
			if s, ok := v.(string); ok {
				job.Payload = []byte(s)
			}
		case "enqueued":
			if s, ok := v.(string); ok {
				if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
					job.EnqueuedAt = time.Unix(unix, 0)
				}
			}
		case "attempts":
			if s, ok := v.(string); ok {
				job.Attempts, _ = strconv.Atoi(s)
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if s, ok := v.(string); ok {
					job.Metadata[k[5:]] = s
				}
			}
		}
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	return job
}

// Stop cancels the poll loop and waits for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalJobs: total}
	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingJobs = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
