package grading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/leaseline/lead-gateway/pkg/redis"
)

var (
	ErrAlreadyGraded      = errors.New("message already graded")
	ErrLockAcquireFailed  = errors.New("failed to acquire grading lock")
	ErrMaxRetriesExceeded = errors.New("maximum grading retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL        time.Duration
	GradedTTL      time.Duration
	MaxRetries     int
	RetryKeyPrefix string
	LockKeyPrefix  string
	DoneKeyPrefix  string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:        2 * time.Minute,
		GradedTTL:      24 * time.Hour,
		MaxRetries:     3,
		RetryKeyPrefix: "grading:retry:",
		LockKeyPrefix:  "grading:lock:",
		DoneKeyPrefix:  "grading:done:",
	}
}

// IdempotencyService keeps at most one consumer grading a message at a time
// and short-circuits redeliveries of already-graded messages. The database's
// unique scorecard link is the hard guarantee; these keys just avoid burning
// model calls on duplicates.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{redis: redisAdapter, config: config}
}

type GradingLock struct {
	MessageID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

// Acquire takes the per-message grading lock. Returns ErrAlreadyGraded when
// the done marker exists, ErrMaxRetriesExceeded when the retry budget is
// spent, ErrLockAcquireFailed when another consumer holds the lock.
func (s *IdempotencyService) Acquire(ctx context.Context, messageID string) (*GradingLock, error) {
	exists, err := s.redis.Exist(s.config.DoneKeyPrefix + messageID)
	if err != nil {
		// Check failure is not fatal; a duplicate grading attempt still hits
		// the unique scorecard constraint.
		logger.Warn("failed to check graded marker", "message_id", messageID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyGraded
	}

	retryCount := 0
	if raw, err := s.redis.Get(s.config.RetryKeyPrefix + messageID); err == nil && len(raw) > 0 {
		retryCount, _ = strconv.Atoi(string(raw))
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: message_id=%s retries=%d", ErrMaxRetriesExceeded, messageID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(s.config.LockKeyPrefix+messageID, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("grading lock acquired", "message_id", messageID, "retry_count", retryCount)

	return &GradingLock{
		MessageID:    messageID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

// MarkSuccess writes the long-term graded marker and drops the lock and the
// retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, lock *GradingLock) error {
	if err := s.redis.Set(s.config.DoneKeyPrefix+lock.MessageID, []byte("1"), s.config.GradedTTL); err != nil {
		return fmt.Errorf("mark message graded: %w", err)
	}
	s.cleanup(lock)
	return nil
}

// MarkFailure bumps the retry counter and drops the lock so a later delivery
// can try again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, lock *GradingLock, reason error) {
	retryValue := []byte(strconv.Itoa(lock.RetryCount + 1))
	if err := s.redis.Set(s.config.RetryKeyPrefix+lock.MessageID, retryValue, s.config.GradedTTL); err != nil {
		logger.Error("failed to bump retry counter", "message_id", lock.MessageID, "error", err)
	}
	if err := s.redis.Del(s.config.LockKeyPrefix + lock.MessageID); err != nil {
		logger.Warn("failed to remove grading lock", "message_id", lock.MessageID, "error", err)
	}
	lock.lockAcquired = false

	logger.Warn("grading failed, will retry",
		"message_id", lock.MessageID,
		"retry_count", lock.RetryCount+1,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
}

// Release drops the lock without touching markers or counters.
func (s *IdempotencyService) Release(ctx context.Context, lock *GradingLock) {
	if lock == nil || !lock.lockAcquired {
		return
	}
	if err := s.redis.Del(s.config.LockKeyPrefix + lock.MessageID); err != nil {
		logger.Warn("failed to release grading lock", "message_id", lock.MessageID, "error", err)
		return
	}
	lock.lockAcquired = false
}

func (s *IdempotencyService) cleanup(lock *GradingLock) {
	if err := s.redis.Del(s.config.LockKeyPrefix + lock.MessageID); err != nil {
		logger.Warn("failed to cleanup grading lock", "message_id", lock.MessageID, "error", err)
	}
	if err := s.redis.Del(s.config.RetryKeyPrefix + lock.MessageID); err != nil {
		logger.Warn("failed to cleanup retry counter", "message_id", lock.MessageID, "error", err)
	}
	lock.lockAcquired = false
}
