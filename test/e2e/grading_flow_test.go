package e2e

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaseline/lead-gateway/internal/grading"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/internal/queue"
	"github.com/leaseline/lead-gateway/internal/repository"
	"github.com/leaseline/lead-gateway/internal/services"
	"github.com/leaseline/lead-gateway/pkg/pg"
	"github.com/leaseline/lead-gateway/pkg/redis"
	"github.com/leaseline/lead-gateway/test/fixtures"
	"github.com/leaseline/lead-gateway/test/helpers"
)

// stubLLM answers lead-synthesis requests with a canned inquiry and grading
// requests (any request declaring tools) with a generate_report call.
type stubLLM struct {
	chatCalls atomic.Int64
}

func (s *stubLLM) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	n := s.chatCalls.Add(1)

	if len(req.Tools) > 0 {
		return &llm.ChatResponse{
			ID: fmt.Sprintf("chatcmpl-%d", n),
			Choices: []llm.Choice{{
				Message: llm.Message{
					Role: llm.RoleAssistant,
					ToolCalls: []llm.ToolCall{{
						ID:   fmt.Sprintf("call-%d", n),
						Type: "function",
						Function: llm.FunctionCall{
							Name:      grading.ReportToolName,
							Arguments: fixtures.ReportArgs,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		}, nil
	}

	return &llm.ChatResponse{
		ID: fmt.Sprintf("chatcmpl-%d", n),
		Choices: []llm.Choice{{
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: fixtures.LeadTexts[0],
			},
			FinishReason: "stop",
		}},
	}, nil
}

type TestEnvironment struct {
	DB            *pg.DB
	Redis         *miniredis.Miniredis
	RedisAdapter  redis.RedisAdapter
	Queue         *queue.Queue
	MessageRepo   *repository.MessageRepository
	ScorecardRepo *repository.ScorecardRepository
	LeadService   *services.LeadService
	ReplyService  *services.ReplyService
	LLM           *stubLLM
	Grader        *grading.Grader
	Processor     *grading.ScorecardProcessor
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	q, err := queue.New(adapter, queue.Config{
		Name:              "test:grading",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	})
	require.NoError(t, err)

	messageRepo := repository.NewMessageRepository(db)
	scorecardRepo := repository.NewScorecardRepository(db)

	client := &stubLLM{}
	leadService := services.NewLeadService(messageRepo, client, "test-model")
	replyService := services.NewReplyService(messageRepo, q)

	grader := grading.NewGrader(messageRepo, scorecardRepo, client, "test-model")
	idempotency := grading.NewIdempotencyService(adapter, grading.DefaultIdempotencyConfig())
	processor := grading.NewScorecardProcessor(grader, messageRepo, idempotency)

	return &TestEnvironment{
		DB:            db,
		Redis:         mr,
		RedisAdapter:  adapter,
		Queue:         q,
		MessageRepo:   messageRepo,
		ScorecardRepo: scorecardRepo,
		LeadService:   leadService,
		ReplyService:  replyService,
		LLM:           client,
		Grader:        grader,
		Processor:     processor,
	}
}

func (env *TestEnvironment) Cleanup() {
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	time.Sleep(100 * time.Millisecond)
	if env.Redis != nil {
		env.Redis.Close()
	}
}

// startConsumer wires the queue to the scorecard processor the way the
// grader binary does.
func (env *TestEnvironment) startConsumer(t *testing.T) {
	err := env.Queue.Consume(func(ctx context.Context, job *queue.Job) error {
		return env.Processor.Process(ctx, job)
	})
	require.NoError(t, err)
}

func TestE2E_LeadCreationAndReplyEnqueue(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	lead, err := env.LeadService.CreateLead(ctx, model.CreateLeadRequest{
		LeadMessage: fixtures.LeadTexts[1],
	})
	require.NoError(t, err)
	assert.Equal(t, model.GradingStatusNone, lead.GradingStatus)
	assert.Equal(t, int64(0), env.LLM.chatCalls.Load())

	replied, err := env.ReplyService.LogReply(ctx, fixtures.NewReplyRequest(lead.ID, fixtures.ValidReplies[0]))
	require.NoError(t, err)
	assert.True(t, replied.Replied())
	assert.Equal(t, model.GradingStatusPending, replied.GradingStatus)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalJobs, int64(1))
}

func TestE2E_SynthesizedLead(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	lead, err := env.LeadService.CreateLead(ctx, model.CreateLeadRequest{})
	require.NoError(t, err)
	assert.Equal(t, fixtures.LeadTexts[0], lead.LeadMessage)
	assert.Equal(t, model.ChannelEmail, lead.Channel)
	assert.Equal(t, int64(1), env.LLM.chatCalls.Load())
}

func TestE2E_ReplyGradedEndToEnd(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	lead, err := env.LeadService.CreateLead(ctx, model.CreateLeadRequest{
		LeadMessage: fixtures.LeadTexts[2],
	})
	require.NoError(t, err)

	_, err = env.ReplyService.LogReply(ctx, fixtures.NewReplyRequest(lead.ID, fixtures.ValidReplies[0]))
	require.NoError(t, err)

	env.startConsumer(t)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		msg, err := env.MessageRepo.GetByID(ctx, lead.ID)
		return err == nil && msg.GradingStatus == model.GradingStatusGraded
	}, "reply was not graded within timeout")

	msg, err := env.MessageRepo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, msg.ScorecardID)

	sc, err := env.ScorecardRepo.GetByID(ctx, *msg.ScorecardID)
	require.NoError(t, err)
	assert.Equal(t, 8, sc.PlatformScore)
	assert.Equal(t, 10, sc.LegalScore)

	overall, err := sc.OverallScore()
	require.NoError(t, err)
	assert.InDelta(t, 8.5, overall, 0.01)
}

func TestE2E_DuplicateGradingDelivery(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	id := helpers.CreateRepliedLead(t, env.MessageRepo, fixtures.LeadTexts[3], fixtures.ValidReplies[1])

	// The same job published twice grades once.
	for i := 0; i < 2; i++ {
		_, err := env.Queue.PublishJSON(ctx, grading.Job{MessageID: id}, map[string]string{"type": "grading"})
		require.NoError(t, err)
	}

	env.startConsumer(t)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		msg, err := env.MessageRepo.GetByID(ctx, id)
		return err == nil && msg.GradingStatus == model.GradingStatusGraded
	}, "reply was not graded within timeout")

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		stats, err := env.Queue.GetStats()
		return err == nil && stats.PendingJobs == 0
	}, "duplicate delivery was not acknowledged")

	var count int64
	env.DB.Read(ctx).Model(&repository.ScorecardEntity{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), env.LLM.chatCalls.Load())
}

func TestE2E_SecondReplyRejected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	id := helpers.CreateTestLead(t, env.MessageRepo, fixtures.LeadTexts[0])

	_, err := env.ReplyService.LogReply(ctx, fixtures.NewReplyRequest(id, fixtures.ValidReplies[0]))
	require.NoError(t, err)

	_, err = env.ReplyService.LogReply(ctx, fixtures.NewReplyRequest(id, fixtures.ValidReplies[1]))
	assert.ErrorIs(t, err, repository.ErrAlreadyReplied)

	msg, err := env.MessageRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, fixtures.ValidReplies[0], *msg.ResponseMessage)
}

func TestE2E_ListUnreplied(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	var ids []uuid.UUID
	for _, text := range fixtures.LeadTexts[:3] {
		ids = append(ids, helpers.CreateTestLead(t, env.MessageRepo, text))
		time.Sleep(5 * time.Millisecond)
	}

	_, err := env.ReplyService.LogReply(ctx, fixtures.NewReplyRequest(ids[1], fixtures.ValidReplies[0]))
	require.NoError(t, err)

	messages, total, err := env.LeadService.List(ctx, fixtures.UnrepliedFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, messages, 2)
	for _, m := range messages {
		assert.False(t, m.Replied())
	}
}
