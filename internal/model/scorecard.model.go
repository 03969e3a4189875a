package model

import "errors"

// Score bounds shared by the tool validation layer and the store layer.
const (
	ScoreMin = 1
	ScoreMax = 10
)

// Rubric dimension names, in report order.
var ScoreDimensions = []string{
	"platform",
	"question",
	"professionalism",
	"personalization",
	"legal",
	"actionability",
}

var ErrScoreUnset = errors.New("all score fields must be set to compute the overall score")

// Scorecard is the rubric evaluation of one reply: six bounded scores with a
// rationale each. Created in a single write and immutable afterwards.
type Scorecard struct {
	ID int64 `json:"id"`

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

// Scores returns the six score values in rubric order.
func (s *Scorecard) Scores() []int {
	return []int{
		s.PlatformScore,
		s.QuestionScore,
		s.ProfessionalismScore,
		s.PersonalizationScore,
		s.LegalScore,
		s.ActionabilityScore,
	}
}

// Rationales returns the six rationale texts in rubric order.
func (s *Scorecard) Rationales() []string {
	return []string{
		s.PlatformRationale,
		s.QuestionRationale,
		s.ProfessionalismRationale,
		s.PersonalizationRationale,
		s.LegalRationale,
		s.ActionabilityRationale,
	}
}

// OverallScore is the arithmetic mean of the six scores. The valid score
// domain starts at 1, so a zero value means the field was never set and the
// overall score is undefined.
func (s *Scorecard) OverallScore() (float64, error) {
	sum := 0
	for _, v := range s.Scores() {
		if v == 0 {
			return 0, ErrScoreUnset
		}
		sum += v
	}
	return float64(sum) / float64(len(ScoreDimensions)), nil
}
