package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/agent"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/model"
)

const ReportToolName = "generate_report"

// ReportScorecardIDKey is the ToolResult.Data key holding the persisted
// scorecard's ID.
const ReportScorecardIDKey = "scorecard_id"

// reportArgs is the tool-call payload: six scores and six rationales.
type reportArgs struct {
	PlatformScore        int `json:"platform_score"`
	QuestionScore        int `json:"question_score"`
	ProfessionalismScore int `json:"professionalism_score"`
	PersonalizationScore int `json:"personalization_score"`
	LegalScore           int `json:"legal_score"`
	ActionabilityScore   int `json:"actionability_score"`

	PlatformRationale        string `json:"platform_rationale"`
	QuestionRationale        string `json:"question_rationale"`
	ProfessionalismRationale string `json:"professionalism_rationale"`
	PersonalizationRationale string `json:"personalization_rationale"`
	LegalRationale           string `json:"legal_rationale"`
	ActionabilityRationale   string `json:"actionability_rationale"`
}

// ReportTool persists a scorecard for one message. A fresh instance is bound
// to the message being graded, so concurrent grading runs never share state;
// the created scorecard ID travels back in the ToolResult.
type ReportTool struct {
	messageID  uuid.UUID
	scorecards ScorecardCreator
	messages   ScorecardAttacher
}

// ScorecardCreator persists new scorecards.
type ScorecardCreator interface {
	Create(ctx context.Context, sc *model.Scorecard) (*model.Scorecard, error)
}

// ScorecardAttacher links a scorecard to its message.
type ScorecardAttacher interface {
	AttachScorecard(ctx context.Context, id uuid.UUID, scorecardID int64) error
}

func NewReportTool(messageID uuid.UUID, scorecards ScorecardCreator, messages ScorecardAttacher) *ReportTool {
	return &ReportTool{
		messageID:  messageID,
		scorecards: scorecards,
		messages:   messages,
	}
}

func (t *ReportTool) Name() string { return ReportToolName }

func (t *ReportTool) Description() string {
	return "Submit the quality report for the reply under review. " +
		"Every score is an integer from 1 to 10 and every rationale must be non-empty."
}

func (t *ReportTool) Schema() llm.ToolSchema {
	props := make(map[string]*llm.ToolParam, 2*len(model.ScoreDimensions))
	required := make([]string, 0, 2*len(model.ScoreDimensions))

	for _, dim := range model.ScoreDimensions {
		scoreKey := dim + "_score"
		rationaleKey := dim + "_rationale"
		props[scoreKey] = llm.NewIntegerParam(
			fmt.Sprintf("Score for the %s dimension, 1 (worst) to 10 (best)", dim),
			model.ScoreMin, model.ScoreMax,
		)
		props[rationaleKey] = llm.NewStringParam(
			fmt.Sprintf("One or two sentences justifying the %s score", dim),
		)
		required = append(required, scoreKey, rationaleKey)
	}

	return llm.ToolSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Execute validates the report and writes the scorecard, then links it to the
// message. Validation problems come back as Failure results so the model can
// see what it got wrong; storage errors are returned as errors.
func (t *ReportTool) Execute(ctx context.Context, arguments string) (agent.ToolResult, error) {
	var args reportArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return agent.ToolResult{Status: "Failure: malformed report arguments: " + err.Error()}, nil
	}

	sc := args.toScorecard()
	if reason := validateReport(sc); reason != "" {
		return agent.ToolResult{Status: "Failure: " + reason}, nil
	}

	created, err := t.scorecards.Create(ctx, sc)
	if err != nil {
		return agent.ToolResult{}, fmt.Errorf("create scorecard: %w", err)
	}

	if err := t.messages.AttachScorecard(ctx, t.messageID, created.ID); err != nil {
		return agent.ToolResult{}, fmt.Errorf("attach scorecard %d to message %s: %w", created.ID, t.messageID, err)
	}

	return agent.ToolResult{
		Status: fmt.Sprintf("Success: report saved as scorecard %d", created.ID),
		Data:   map[string]any{ReportScorecardIDKey: created.ID},
	}, nil
}

func validateReport(sc *model.Scorecard) string {
	scores := sc.Scores()
	rationales := sc.Rationales()
	for i, dim := range model.ScoreDimensions {
		if scores[i] < model.ScoreMin || scores[i] > model.ScoreMax {
			return fmt.Sprintf("%s_score must be between %d and %d, got %d",
				dim, model.ScoreMin, model.ScoreMax, scores[i])
		}
		if strings.TrimSpace(rationales[i]) == "" {
			return fmt.Sprintf("%s_rationale must not be empty", dim)
		}
	}
	return ""
}

func (a *reportArgs) toScorecard() *model.Scorecard {
	return &model.Scorecard{
		PlatformScore:        a.PlatformScore,
		QuestionScore:        a.QuestionScore,
		ProfessionalismScore: a.ProfessionalismScore,
		PersonalizationScore: a.PersonalizationScore,
		LegalScore:           a.LegalScore,
		ActionabilityScore:   a.ActionabilityScore,

		PlatformRationale:        a.PlatformRationale,
		QuestionRationale:        a.QuestionRationale,
		ProfessionalismRationale: a.ProfessionalismRationale,
		PersonalizationRationale: a.PersonalizationRationale,
		LegalRationale:           a.LegalRationale,
		ActionabilityRationale:   a.ActionabilityRationale,
	}
}
