package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ChatResponse), args.Error(1)
}

func chatText(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Choices: []llm.Choice{{
		Message: llm.Message{Role: llm.RoleAssistant, Content: content},
	}}}
}

func TestLeadService_CreateLead_SuppliedText(t *testing.T) {
	repo := new(MockMessageRepository)
	client := new(MockLLMClient)
	ctx := context.Background()

	service := NewLeadService(repo, client, "test-model")

	repo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.LeadMessage == "Do you allow cats?" && m.Channel == model.ChannelEmail
	})).Return(&model.Message{
		ID:          uuid.New(),
		Channel:     model.ChannelEmail,
		LeadMessage: "Do you allow cats?",
	}, nil)

	result, err := service.CreateLead(ctx, model.CreateLeadRequest{LeadMessage: "  Do you allow cats?  "})
	require.NoError(t, err)
	assert.Equal(t, "Do you allow cats?", result.LeadMessage)

	// No model call when text is supplied.
	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestLeadService_CreateLead_Synthesized(t *testing.T) {
	repo := new(MockMessageRepository)
	client := new(MockLLMClient)
	ctx := context.Background()

	service := NewLeadService(repo, client, "test-model")

	client.On("Chat", ctx, mock.MatchedBy(func(req *llm.ChatRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return req.Model == "test-model" && last.Content == shopperBrief
	})).Return(chatText("Hi! Is the one-bedroom still open for November?"), nil)

	repo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.LeadMessage == "Hi! Is the one-bedroom still open for November?"
	})).Return(&model.Message{
		ID:          uuid.New(),
		Channel:     model.ChannelEmail,
		LeadMessage: "Hi! Is the one-bedroom still open for November?",
	}, nil)

	result, err := service.CreateLead(ctx, model.CreateLeadRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.LeadMessage)

	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestLeadService_CreateLead_SynthesisEmptyOutput(t *testing.T) {
	repo := new(MockMessageRepository)
	client := new(MockLLMClient)
	ctx := context.Background()

	service := NewLeadService(repo, client, "test-model")

	client.On("Chat", ctx, mock.Anything).Return(chatText("   "), nil)

	result, err := service.CreateLead(ctx, model.CreateLeadRequest{})
	assert.ErrorIs(t, err, ErrLeadSynthesisFailed)
	assert.Nil(t, result)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLeadService_CreateLead_ModelError(t *testing.T) {
	repo := new(MockMessageRepository)
	client := new(MockLLMClient)
	ctx := context.Background()

	service := NewLeadService(repo, client, "test-model")

	client.On("Chat", ctx, mock.Anything).Return(nil, assert.AnError)

	result, err := service.CreateLead(ctx, model.CreateLeadRequest{})
	assert.Error(t, err)
	assert.Nil(t, result)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLeadService_List(t *testing.T) {
	repo := new(MockMessageRepository)
	ctx := context.Background()

	service := NewLeadService(repo, nil, "test-model")

	filter := model.MessageFilter{Unreplied: true, Desc: true}
	repo.On("List", ctx, filter).Return([]*model.Message{{ID: uuid.New()}}, int64(1), nil)

	items, total, err := service.List(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
	repo.AssertExpectations(t)
}
