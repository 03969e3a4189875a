package grading

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/internal/queue"
	"github.com/leaseline/lead-gateway/internal/repository"
	"github.com/leaseline/lead-gateway/pkg/logger"
)

// Job is the queued grading request. One per replied message; the consumer
// re-reads everything else from the store at grading time.
type Job struct {
	MessageID uuid.UUID `json:"message_id"`
}

// ScorecardProcessor grades one queued job with idempotency guarantees.
type ScorecardProcessor struct {
	grader      *Grader
	messages    MessageReader
	idempotency *IdempotencyService
}

func NewScorecardProcessor(grader *Grader, messages MessageReader, idempotency *IdempotencyService) *ScorecardProcessor {
	return &ScorecardProcessor{
		grader:      grader,
		messages:    messages,
		idempotency: idempotency,
	}
}

func (p *ScorecardProcessor) GetType() string {
	return "scorecard"
}

// Process runs one grading job. A nil return acks the delivery; an error
// leaves it pending for redelivery.
func (p *ScorecardProcessor) Process(ctx context.Context, queueJob *queue.Job) error {
	var job Job
	if err := json.Unmarshal(queueJob.Payload, &job); err != nil {
		logger.Error("malformed grading job, dropping", "job_id", queueJob.ID, "error", err)
		// Unparseable payloads never succeed on retry.
		return nil
	}

	messageID := job.MessageID.String()

	lock, err := p.idempotency.Acquire(ctx, messageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyGraded):
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			logger.Error("grading retries exhausted", "message_id", messageID)
			if statusErr := p.messages.SetGradingStatus(ctx, job.MessageID, model.GradingStatusFailed); statusErr != nil {
				logger.Error("failed to mark grading failed", "message_id", messageID, "error", statusErr)
			}
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			return errors.New("grading lock held by another consumer")
		default:
			return err
		}
	}
	defer p.idempotency.Release(ctx, lock)

	logger.Info("grading message",
		"message_id", messageID,
		"retry_count", lock.RetryCount,
		"is_retry", lock.IsRetry)

	scorecardID, err := p.grader.Grade(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrMessageNotReplied) {
			// Retrying cannot fix a missing or unreplied message.
			logger.Warn("grading job not actionable, dropping", "message_id", messageID, "error", err)
			return nil
		}
		if errors.Is(err, ErrNoReport) || errors.Is(err, ErrReportRejected) {
			// The model saw the reply and produced no usable report; another
			// call gets the same input. The message is already marked failed.
			logger.Warn("grading failed on report content, dropping", "message_id", messageID, "error", err)
			return nil
		}
		p.idempotency.MarkFailure(ctx, lock, err)
		return err
	}

	if err := p.idempotency.MarkSuccess(ctx, lock); err != nil {
		// The scorecard is attached; the marker only saves future work.
		logger.Error("failed to mark grading success", "message_id", messageID, "error", err)
	}

	logger.Info("message graded",
		"message_id", messageID,
		"scorecard_id", scorecardID,
		"retry_count", lock.RetryCount)
	return nil
}
