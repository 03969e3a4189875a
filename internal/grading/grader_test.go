package grading

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/internal/repository"
)

type fakeScorecardStore struct {
	created []*model.Scorecard
	nextID  int64
	err     error
}

func (f *fakeScorecardStore) Create(_ context.Context, sc *model.Scorecard) (*model.Scorecard, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	out := *sc
	out.ID = f.nextID
	f.created = append(f.created, &out)
	return &out, nil
}

type fakeMessageStore struct {
	messages  map[uuid.UUID]*model.Message
	attached  map[uuid.UUID]int64
	statuses  map[uuid.UUID]model.GradingStatus
	attachErr error
}

func newFakeMessageStore(msgs ...*model.Message) *fakeMessageStore {
	f := &fakeMessageStore{
		messages: make(map[uuid.UUID]*model.Message),
		attached: make(map[uuid.UUID]int64),
		statuses: make(map[uuid.UUID]model.GradingStatus),
	}
	for _, m := range msgs {
		f.messages[m.ID] = m
	}
	return f
}

func (f *fakeMessageStore) GetByID(_ context.Context, id uuid.UUID) (*model.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *m
	return &copy, nil
}

func (f *fakeMessageStore) AttachScorecard(_ context.Context, id uuid.UUID, scorecardID int64) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	if _, done := f.attached[id]; done {
		return repository.ErrAlreadyGraded
	}
	f.attached[id] = scorecardID
	f.statuses[id] = model.GradingStatusGraded
	return nil
}

func (f *fakeMessageStore) SetGradingStatus(_ context.Context, id uuid.UUID, status model.GradingStatus) error {
	f.statuses[id] = status
	return nil
}

type scriptedLLM struct {
	response *llm.ChatResponse
	err      error
	requests []*llm.ChatRequest
}

func (c *scriptedLLM) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.requests = append(c.requests, req)
	return c.response, c.err
}

const validReportArgs = `{
	"platform_score": 8, "platform_rationale": "Right length for email.",
	"question_score": 9, "question_rationale": "Both questions answered.",
	"professionalism_score": 9, "professionalism_rationale": "Courteous and clean.",
	"personalization_score": 7, "personalization_rationale": "References the move-in date.",
	"legal_score": 10, "legal_rationale": "No compliance concerns.",
	"actionability_score": 8, "actionability_rationale": "Offers two tour slots."
}`

func reportCallResponse(args string) *llm.ChatResponse {
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: ReportToolName, Arguments: args},
		}},
	}}}}
}

func repliedMessage() *model.Message {
	response := "Hi Sam, yes the 2BR is available from October. Want to tour Saturday?"
	at := time.Now()
	return &model.Message{
		ID:              uuid.New(),
		Channel:         model.ChannelEmail,
		LeadMessage:     "Is the 2BR still available? We move in October.",
		LeadAt:          at.Add(-time.Hour),
		ResponseMessage: &response,
		ResponseAt:      &at,
		GradingStatus:   model.GradingStatusPending,
	}
}

func TestGrade_HappyPath(t *testing.T) {
	msg := repliedMessage()
	messages := newFakeMessageStore(msg)
	scorecards := &fakeScorecardStore{}
	client := &scriptedLLM{response: reportCallResponse(validReportArgs)}

	grader := NewGrader(messages, scorecards, client, "test-model")

	scorecardID, err := grader.Grade(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), scorecardID)

	require.Len(t, scorecards.created, 1)
	assert.Equal(t, 8, scorecards.created[0].PlatformScore)
	assert.Equal(t, scorecardID, messages.attached[msg.ID])
	assert.Equal(t, model.GradingStatusGraded, messages.statuses[msg.ID])

	// The brief carries the live message fields.
	require.Len(t, client.requests, 1)
	brief := client.requests[0].Messages[len(client.requests[0].Messages)-1].Content
	assert.Contains(t, brief, "Lead Message: "+msg.LeadMessage)
	assert.Contains(t, brief, "Platform: EMAIL")
	assert.Contains(t, brief, "Response Message: "+*msg.ResponseMessage)
}

func TestGrade_AlreadyGradedReturnsExistingScorecard(t *testing.T) {
	msg := repliedMessage()
	existing := int64(42)
	msg.ScorecardID = &existing
	messages := newFakeMessageStore(msg)
	client := &scriptedLLM{}

	grader := NewGrader(messages, &fakeScorecardStore{}, client, "test-model")

	scorecardID, err := grader.Grade(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, existing, scorecardID)
	assert.Empty(t, client.requests)
}

func TestGrade_UnrepliedMessage(t *testing.T) {
	msg := repliedMessage()
	msg.ResponseMessage = nil
	msg.ResponseAt = nil
	messages := newFakeMessageStore(msg)

	grader := NewGrader(messages, &fakeScorecardStore{}, &scriptedLLM{}, "test-model")

	_, err := grader.Grade(context.Background(), msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotReplied)
}

func TestGrade_UnknownMessage(t *testing.T) {
	grader := NewGrader(newFakeMessageStore(), &fakeScorecardStore{}, &scriptedLLM{}, "test-model")

	_, err := grader.Grade(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGrade_NoToolCallMarksFailed(t *testing.T) {
	msg := repliedMessage()
	messages := newFakeMessageStore(msg)
	client := &scriptedLLM{response: &llm.ChatResponse{Choices: []llm.Choice{{
		Message: llm.Message{Role: llm.RoleAssistant, Content: "The reply looks fine to me."},
	}}}}

	grader := NewGrader(messages, &fakeScorecardStore{}, client, "test-model")

	_, err := grader.Grade(context.Background(), msg.ID)
	assert.ErrorIs(t, err, ErrNoReport)
	assert.Equal(t, model.GradingStatusFailed, messages.statuses[msg.ID])
}

func TestGrade_InvalidReportMarksFailed(t *testing.T) {
	msg := repliedMessage()
	messages := newFakeMessageStore(msg)
	badArgs := `{"platform_score": 11, "platform_rationale": "too high",
		"question_score": 5, "question_rationale": "ok",
		"professionalism_score": 5, "professionalism_rationale": "ok",
		"personalization_score": 5, "personalization_rationale": "ok",
		"legal_score": 5, "legal_rationale": "ok",
		"actionability_score": 5, "actionability_rationale": "ok"}`
	client := &scriptedLLM{response: reportCallResponse(badArgs)}

	scorecards := &fakeScorecardStore{}
	grader := NewGrader(messages, scorecards, client, "test-model")

	_, err := grader.Grade(context.Background(), msg.ID)
	assert.ErrorIs(t, err, ErrReportRejected)
	assert.Empty(t, scorecards.created)
	assert.Equal(t, model.GradingStatusFailed, messages.statuses[msg.ID])
}
