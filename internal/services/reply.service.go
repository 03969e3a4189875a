package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/grading"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/pkg/logger"
)

type ReplyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	LogResponse(ctx context.Context, id uuid.UUID, response string, at time.Time) error
}

// GradingPublisher enqueues grading jobs.
type GradingPublisher interface {
	PublishJSON(ctx context.Context, payload interface{}, metadata map[string]string) (string, error)
}

// ReplyService logs the human reply to a lead and enqueues the grading job.
// A message takes exactly one reply; later attempts are rejected.
type ReplyService struct {
	repo  ReplyRepository
	queue GradingPublisher
}

func NewReplyService(repo ReplyRepository, queue GradingPublisher) *ReplyService {
	return &ReplyService{
		repo:  repo,
		queue: queue,
	}
}

// LogReply records the response and publishes the grading job. The write is
// first-reply-wins at the store layer, so two concurrent submissions produce
// one logged reply and one rejection.
func (s *ReplyService) LogReply(ctx context.Context, req model.ReplyRequest) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.LogResponse(ctx, req.MessageID, req.ResponseMessage, time.Now()); err != nil {
		return nil, err
	}

	job := grading.Job{MessageID: req.MessageID}
	if _, err := s.queue.PublishJSON(ctx, job, map[string]string{"type": "grading"}); err != nil {
		// The reply is durable either way; the message stays pending until a
		// new job is enqueued for it.
		logger.Error("failed to enqueue grading job", "message_id", req.MessageID, "error", err)
		return nil, fmt.Errorf("enqueue grading job: %w", err)
	}

	logger.Info("reply logged", "message_id", req.MessageID)
	return s.repo.GetByID(ctx, req.MessageID)
}
