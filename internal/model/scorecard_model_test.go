package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorecard_OverallScore(t *testing.T) {
	t.Run("mean of six scores", func(t *testing.T) {
		sc := &Scorecard{
			PlatformScore: 8, QuestionScore: 9, ProfessionalismScore: 9,
			PersonalizationScore: 7, LegalScore: 10, ActionabilityScore: 8,
		}
		overall, err := sc.OverallScore()
		require.NoError(t, err)
		assert.InDelta(t, 8.5, overall, 0.01)
	})

	t.Run("all minimum", func(t *testing.T) {
		sc := &Scorecard{
			PlatformScore: 1, QuestionScore: 1, ProfessionalismScore: 1,
			PersonalizationScore: 1, LegalScore: 1, ActionabilityScore: 1,
		}
		overall, err := sc.OverallScore()
		require.NoError(t, err)
		assert.Equal(t, 1.0, overall)
	})

	t.Run("unset field", func(t *testing.T) {
		sc := &Scorecard{
			PlatformScore: 8, QuestionScore: 9, ProfessionalismScore: 9,
			PersonalizationScore: 7, LegalScore: 10,
		}
		_, err := sc.OverallScore()
		assert.ErrorIs(t, err, ErrScoreUnset)
	})
}

func TestScorecard_Order(t *testing.T) {
	sc := &Scorecard{
		PlatformScore: 1, QuestionScore: 2, ProfessionalismScore: 3,
		PersonalizationScore: 4, LegalScore: 5, ActionabilityScore: 6,
		PlatformRationale: "a", QuestionRationale: "b", ProfessionalismRationale: "c",
		PersonalizationRationale: "d", LegalRationale: "e", ActionabilityRationale: "f",
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, sc.Scores())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, sc.Rationales())
	assert.Len(t, ScoreDimensions, 6)
}
