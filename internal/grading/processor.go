package grading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leaseline/lead-gateway/internal/config"
	"github.com/leaseline/lead-gateway/internal/queue"
	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/leaseline/lead-gateway/pkg/prom"
	"github.com/leaseline/lead-gateway/pkg/redis"
	"github.com/leaseline/lead-gateway/pkg/worker"
)

// ProcessingTimeout bounds one grading run including the model round trip.
const ProcessingTimeout = 90 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

const consumerInstances = 4
const workerPoolSize = 16

// Processor is the per-job handler plugged into the service.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
	GetType() string
}

// ProcessorService consumes the grading queue and fans jobs out to a worker
// pool. Multiple consumer instances share one stream consumer group.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

func NewProcessorService(adapter redis.RedisAdapter) (*ProcessorService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		queues:  make([]*queue.Queue, 0),
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, workerPoolSize, nil),
	}, nil
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered processor", "type", processor.GetType())
}

func (s *ProcessorService) Start() error {
	logger.Info("starting grading service")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	cfg := config.Get()
	for i := 0; i < consumerInstances; i++ {
		queueConfig := queue.Config{
			Name:              cfg.GradingQueueName,
			ConsumerGroup:     cfg.GradingConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", cfg.GradingConsumerName, i),
			MaxRetries:        cfg.GradingMaxRetries,
			VisibilityTimeout: cfg.GradingVisibilityTimeout,
			PollInterval:      cfg.GradingPollInterval,
			BatchSize:         cfg.GradingBatchSize,
			MaxLen:            cfg.GradingQueueMaxLen,
			EnableDLQ:         cfg.GradingEnableDLQ,
		}

		q, err := queue.New(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("create queue consumer %d: %w", i, err)
		}
		if err := q.Consume(s.jobHandler); err != nil {
			return fmt.Errorf("start queue consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("grading service started", "consumers", len(s.queues), "workers", workerPoolSize)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("grading metrics",
		"total_graded", stats["total_graded"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("queue stats", "queue", i, "total", qStats.TotalJobs, "pending", qStats.PendingJobs)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingJobs > 1000 {
			logger.Warn("health check: queue has high lag", "queue", i, "pending_jobs", stats.PendingJobs)
		}
	}
}

func (s *ProcessorService) Stop() {
	logger.Info("shutting down grading service")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(timeout); err != nil {
				logger.Error("error stopping queue", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("grading service stopped")
}

type jobResult struct {
	job        *queue.Job
	resultChan chan error
	ctx        context.Context
}

// jobHandler bridges a queue delivery into the worker pool and blocks until
// a worker reports the outcome, so the queue acks only completed jobs.
func (s *ProcessorService) jobHandler(ctx context.Context, job *queue.Job) error {
	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&jobResult{
		job:        job,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to grade job: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job context cancelled before grading started", "worker", workerIndex)
		return
	default:
	}

	start := time.Now()
	var resultErr error

	if s.processor == nil {
		logger.Error("no processor registered", "worker", workerIndex)
		s.metrics.RecordFailure()
		resultErr = nil // ack, nothing can handle it on retry either
	} else if err := s.processor.Process(jobRes.ctx, jobRes.job); err != nil {
		s.metrics.RecordFailure()
		prom.AddGradingCompleted("failure")
		prom.ObserveGradingDuration(time.Since(start).Seconds(), "failure")
		logger.Error("grading job failed", "worker", workerIndex, "error", err)
		resultErr = err
	} else {
		duration := time.Since(start)
		s.metrics.RecordSuccess(duration)
		prom.AddGradingCompleted("success")
		prom.ObserveGradingDuration(duration.Seconds(), "success")
		resultErr = nil
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("context cancelled while sending result", "worker", workerIndex)
	}
}
