package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/agent"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/pkg/logger"
)

var (
	// ErrMessageNotReplied means the message has no logged response yet, so
	// there is nothing to grade. Permanent for this delivery.
	ErrMessageNotReplied = errors.New("message has no response to grade")

	// ErrNoReport means the model finished without calling generate_report.
	// Terminal for the message: the consumer never re-invokes the model on
	// content failures.
	ErrNoReport = errors.New("grader did not submit a report")

	// ErrReportRejected means the submitted report failed validation or
	// could not be stored. Terminal, like ErrNoReport.
	ErrReportRejected = errors.New("report was rejected")
)

// MessageReader is the message-side store access grading needs.
type MessageReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	AttachScorecard(ctx context.Context, id uuid.UUID, scorecardID int64) error
	SetGradingStatus(ctx context.Context, id uuid.UUID, status model.GradingStatus) error
}

// Grader runs the review agent against one replied message and persists the
// resulting scorecard. Each run builds its own agent and tool so nothing is
// shared between concurrent gradings.
type Grader struct {
	messages   MessageReader
	scorecards ScorecardCreator
	client     llm.Client
	model      string
}

func NewGrader(messages MessageReader, scorecards ScorecardCreator, client llm.Client, model string) *Grader {
	return &Grader{
		messages:   messages,
		scorecards: scorecards,
		client:     client,
		model:      model,
	}
}

// Grade fetches the message fresh, asks the review agent for a report, and
// returns the ID of the scorecard now attached to the message. Already-graded
// messages return their existing scorecard ID without another model call.
func (g *Grader) Grade(ctx context.Context, messageID uuid.UUID) (int64, error) {
	msg, err := g.messages.GetByID(ctx, messageID)
	if err != nil {
		return 0, fmt.Errorf("load message %s: %w", messageID, err)
	}

	if msg.ScorecardID != nil {
		logger.Info("message already graded", "message_id", messageID, "scorecard_id", *msg.ScorecardID)
		return *msg.ScorecardID, nil
	}
	if !msg.Replied() {
		return 0, fmt.Errorf("message %s: %w", messageID, ErrMessageNotReplied)
	}

	if err := g.messages.SetGradingStatus(ctx, messageID, model.GradingStatusRunning); err != nil {
		return 0, fmt.Errorf("mark message %s grading: %w", messageID, err)
	}

	scorecardID, err := g.runAgent(ctx, msg)
	if err != nil {
		if statusErr := g.messages.SetGradingStatus(ctx, messageID, model.GradingStatusFailed); statusErr != nil {
			logger.Error("failed to mark grading failure", "message_id", messageID, "error", statusErr)
		}
		return 0, err
	}

	// AttachScorecard inside the tool already moved the status to graded.
	return scorecardID, nil
}

func (g *Grader) runAgent(ctx context.Context, msg *model.Message) (int64, error) {
	tool := NewReportTool(msg.ID, g.scorecards, g.messages)
	reviewer := agent.New(g.client, agent.ResponseGraderPersona, g.model, agent.GraderHistoryLimit, tool)

	exchange, err := reviewer.ChatOnce(ctx, gradingBrief(msg))
	if err != nil {
		return 0, fmt.Errorf("grading exchange: %w", err)
	}

	for _, result := range exchange.ToolResults {
		if !result.OK() {
			return 0, fmt.Errorf("%w: %s", ErrReportRejected, result.Status)
		}
		if id, ok := result.Data[ReportScorecardIDKey].(int64); ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("message %s: %w", msg.ID, ErrNoReport)
}

// gradingBrief is the single user message handed to the review agent.
func gradingBrief(msg *model.Message) string {
	response := ""
	if msg.ResponseMessage != nil {
		response = *msg.ResponseMessage
	}
	return fmt.Sprintf("Lead Message: %s\nPlatform: %s\nResponse Message: %s",
		msg.LeadMessage, msg.Channel, response)
}
