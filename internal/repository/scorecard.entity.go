package repository

import (
	"fmt"
	"strings"

	"github.com/leaseline/lead-gateway/internal/model"
	"gorm.io/gorm"
)

type ScorecardEntity struct {
	ID int64 `db:"id" gorm:"primaryKey;autoIncrement;column:id"`

	PlatformScore        int `db:"platform_score"        gorm:"column:platform_score;not null;check:platform_score >= 1 AND platform_score <= 10"`
	QuestionScore        int `db:"question_score"        gorm:"column:question_score;not null;check:question_score >= 1 AND question_score <= 10"`
	ProfessionalismScore int `db:"professionalism_score" gorm:"column:professionalism_score;not null;check:professionalism_score >= 1 AND professionalism_score <= 10"`
	PersonalizationScore int `db:"personalization_score" gorm:"column:personalization_score;not null;check:personalization_score >= 1 AND personalization_score <= 10"`
	LegalScore           int `db:"legal_score"           gorm:"column:legal_score;not null;check:legal_score >= 1 AND legal_score <= 10"`
	ActionabilityScore   int `db:"actionability_score"   gorm:"column:actionability_score;not null;check:actionability_score >= 1 AND actionability_score <= 10"`

	PlatformRationale        string `db:"platform_rationale"        gorm:"column:platform_rationale;not null"`
	QuestionRationale        string `db:"question_rationale"        gorm:"column:question_rationale;not null"`
	ProfessionalismRationale string `db:"professionalism_rationale" gorm:"column:professionalism_rationale;not null"`
	PersonalizationRationale string `db:"personalization_rationale" gorm:"column:personalization_rationale;not null"`
	LegalRationale           string `db:"legal_rationale"           gorm:"column:legal_rationale;not null"`
	ActionabilityRationale   string `db:"actionability_rationale"   gorm:"column:actionability_rationale;not null"`
}

func (ScorecardEntity) TableName() string {
	return "scorecards"
}

// BeforeCreate enforces the score bounds at the store layer, independent of
// any validation the application did earlier. The CHECK constraints cover
// raw SQL writes; this hook covers every gorm write path uniformly.
func (e *ScorecardEntity) BeforeCreate(tx *gorm.DB) error {
	scores := []int{
		e.PlatformScore,
		e.QuestionScore,
		e.ProfessionalismScore,
		e.PersonalizationScore,
		e.LegalScore,
		e.ActionabilityScore,
	}
	rationales := []string{
		e.PlatformRationale,
		e.QuestionRationale,
		e.ProfessionalismRationale,
		e.PersonalizationRationale,
		e.LegalRationale,
		e.ActionabilityRationale,
	}
	for i, s := range scores {
		if s < model.ScoreMin || s > model.ScoreMax {
			return fmt.Errorf("%w: %s_score=%d", ErrScoreOutOfRange, model.ScoreDimensions[i], s)
		}
	}
	for i, r := range rationales {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: %s_rationale", ErrEmptyRationale, model.ScoreDimensions[i])
		}
	}
	return nil
}

func toScorecardEntity(s *model.Scorecard) *ScorecardEntity {
	if s == nil {
		return nil
	}
	return &ScorecardEntity{
		ID:                       s.ID,
		PlatformScore:            s.PlatformScore,
		QuestionScore:            s.QuestionScore,
		ProfessionalismScore:     s.ProfessionalismScore,
		PersonalizationScore:     s.PersonalizationScore,
		LegalScore:               s.LegalScore,
		ActionabilityScore:       s.ActionabilityScore,
		PlatformRationale:        s.PlatformRationale,
		QuestionRationale:        s.QuestionRationale,
		ProfessionalismRationale: s.ProfessionalismRationale,
		PersonalizationRationale: s.PersonalizationRationale,
		LegalRationale:           s.LegalRationale,
		ActionabilityRationale:   s.ActionabilityRationale,
	}
}

func toScorecardModel(e *ScorecardEntity) *model.Scorecard {
	if e == nil {
		return nil
	}
	return &model.Scorecard{
		ID:                       e.ID,
		PlatformScore:            e.PlatformScore,
		QuestionScore:            e.QuestionScore,
		ProfessionalismScore:     e.ProfessionalismScore,
		PersonalizationScore:     e.PersonalizationScore,
		LegalScore:               e.LegalScore,
		ActionabilityScore:       e.ActionabilityScore,
		PlatformRationale:        e.PlatformRationale,
		QuestionRationale:        e.QuestionRationale,
		ProfessionalismRationale: e.ProfessionalismRationale,
		PersonalizationRationale: e.PersonalizationRationale,
		LegalRationale:           e.LegalRationale,
		ActionabilityRationale:   e.ActionabilityRationale,
	}
}
