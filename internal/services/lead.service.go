package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/agent"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/pkg/logger"
)

var (
	ErrLeadSynthesisFailed = errors.New("shopper agent produced no lead text")
	ErrNotFound            = errors.New("message not found")
)

// shopperBrief is the only user input the shopper agent ever sees; the
// persona carries the rest.
const shopperBrief = "Media: Email\n"

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

// LeadService creates lead messages: either verbatim from a supplied text or
// synthesized by the shopper agent.
type LeadService struct {
	repo      MessageRepository
	client    llm.Client
	leadModel string
}

func NewLeadService(repo MessageRepository, client llm.Client, leadModel string) *LeadService {
	return &LeadService{
		repo:      repo,
		client:    client,
		leadModel: leadModel,
	}
}

// CreateLead persists a new lead. When no text is supplied the shopper agent
// writes one. Leads arrive unreplied and ungraded.
func (s *LeadService) CreateLead(ctx context.Context, req model.CreateLeadRequest) (*model.Message, error) {
	text := strings.TrimSpace(req.LeadMessage)
	if text == "" {
		synthesized, err := s.synthesizeLead(ctx)
		if err != nil {
			return nil, err
		}
		text = synthesized
	}

	msg := &model.Message{
		Channel:       model.ChannelEmail,
		LeadMessage:   text,
		GradingStatus: model.GradingStatusNone,
	}

	created, err := s.repo.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	logger.Info("lead created", "message_id", created.ID, "channel", created.Channel)
	return created, nil
}

// synthesizeLead asks the shopper agent for one inquiry. History depth one
// keeps each lead independent of the previous ones.
func (s *LeadService) synthesizeLead(ctx context.Context) (string, error) {
	shopper := agent.New(s.client, agent.PropertyShopperPersona, s.leadModel, agent.ShopperHistoryLimit)

	exchange, err := shopper.ChatOnce(ctx, shopperBrief)
	if err != nil {
		return "", fmt.Errorf("synthesize lead: %w", err)
	}

	text := strings.TrimSpace(exchange.Content)
	if text == "" {
		return "", ErrLeadSynthesisFailed
	}
	return text, nil
}

func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LeadService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	return s.repo.List(ctx, f)
}
