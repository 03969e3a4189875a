package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/model"
)

var (
	LeadTexts = []string{
		"Hi, I saw your listing for the 2-bedroom on Maple Street. Is it still available?",
		"Hello! Does the unit at 48 Birch Ave allow cats? I have one very lazy tabby.",
		"I'm relocating for work next month and interested in a 12-month lease. What utilities are included?",
		"Is parking included with the studio apartment? I'd like to schedule a viewing this week.",
	}

	ValidReplies = []string{
		"Thanks for reaching out! Yes, the unit is still available. Would Thursday at 5pm work for a tour?",
		"Hi! Cats are welcome with a small pet deposit. Happy to answer any other questions.",
	}

	InvalidReplies = []string{
		"",
		"   ",
		"\n\t",
	}
)

func NewTestLead(text string) *model.Message {
	return &model.Message{
		Channel:     model.ChannelEmail,
		LeadMessage: text,
		LeadAt:      time.Now(),
	}
}

func NewReplyRequest(id uuid.UUID, response string) model.ReplyRequest {
	return model.ReplyRequest{
		MessageID:       id,
		ResponseMessage: response,
	}
}

func NewScorecard() *model.Scorecard {
	return &model.Scorecard{
		PlatformScore: 8, QuestionScore: 9, ProfessionalismScore: 9,
		PersonalizationScore: 7, LegalScore: 10, ActionabilityScore: 8,
		PlatformRationale:        "Tone and length fit an email exchange.",
		QuestionRationale:        "Every question in the inquiry was answered.",
		ProfessionalismRationale: "Courteous and free of errors.",
		PersonalizationRationale: "References details from the inquiry.",
		LegalRationale:           "No discriminatory or non-compliant language.",
		ActionabilityRationale:   "Proposes a concrete next step with a time.",
	}
}

// ReportArgs is a valid generate_report arguments payload matching NewScorecard.
const ReportArgs = `{
	"platform_score": 8, "platform_rationale": "Tone and length fit an email exchange.",
	"question_score": 9, "question_rationale": "Every question in the inquiry was answered.",
	"professionalism_score": 9, "professionalism_rationale": "Courteous and free of errors.",
	"personalization_score": 7, "personalization_rationale": "References details from the inquiry.",
	"legal_score": 10, "legal_rationale": "No discriminatory or non-compliant language.",
	"actionability_score": 8, "actionability_rationale": "Proposes a concrete next step with a time."
}`

func UnrepliedFilter() model.MessageFilter {
	return model.MessageFilter{
		Unreplied: true,
		Limit:     50,
		Desc:      true,
	}
}

func FilterWithPagination(limit, offset int) model.MessageFilter {
	return model.MessageFilter{
		Limit:  limit,
		Offset: offset,
	}
}
