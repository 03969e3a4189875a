package grading

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaseline/lead-gateway/internal/model"
)

func TestReportTool_SchemaCoversAllDimensions(t *testing.T) {
	tool := NewReportTool(uuid.New(), &fakeScorecardStore{}, newFakeMessageStore())

	schema := tool.Schema()
	assert.Equal(t, "object", schema.Type)
	assert.Len(t, schema.Properties, 12)
	assert.Len(t, schema.Required, 12)

	for _, dim := range model.ScoreDimensions {
		score, ok := schema.Properties[dim+"_score"]
		require.True(t, ok, "missing %s_score", dim)
		assert.Equal(t, "integer", score.Type)
		require.NotNil(t, score.Minimum)
		require.NotNil(t, score.Maximum)
		assert.Equal(t, model.ScoreMin, *score.Minimum)
		assert.Equal(t, model.ScoreMax, *score.Maximum)

		rationale, ok := schema.Properties[dim+"_rationale"]
		require.True(t, ok, "missing %s_rationale", dim)
		assert.Equal(t, "string", rationale.Type)
	}
}

func TestReportTool_ExecutePersistsAndAttaches(t *testing.T) {
	msg := repliedMessage()
	messages := newFakeMessageStore(msg)
	scorecards := &fakeScorecardStore{}
	tool := NewReportTool(msg.ID, scorecards, messages)

	result, err := tool.Execute(context.Background(), validReportArgs)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, int64(1), result.Data[ReportScorecardIDKey])
	assert.Equal(t, int64(1), messages.attached[msg.ID])

	require.Len(t, scorecards.created, 1)
	overall, err := scorecards.created[0].OverallScore()
	require.NoError(t, err)
	assert.InDelta(t, 8.5, overall, 0.01)
}

func TestReportTool_ExecuteRejectsOutOfRangeScore(t *testing.T) {
	for _, bad := range []int{0, -1, 11} {
		t.Run(fmt.Sprintf("score_%d", bad), func(t *testing.T) {
			args := fmt.Sprintf(`{
				"platform_score": %d, "platform_rationale": "r",
				"question_score": 5, "question_rationale": "r",
				"professionalism_score": 5, "professionalism_rationale": "r",
				"personalization_score": 5, "personalization_rationale": "r",
				"legal_score": 5, "legal_rationale": "r",
				"actionability_score": 5, "actionability_rationale": "r"}`, bad)

			scorecards := &fakeScorecardStore{}
			tool := NewReportTool(uuid.New(), scorecards, newFakeMessageStore())

			result, err := tool.Execute(context.Background(), args)
			require.NoError(t, err)
			assert.False(t, result.OK())
			assert.Contains(t, result.Status, "platform_score")
			assert.Empty(t, scorecards.created)
		})
	}
}

func TestReportTool_ExecuteRejectsBlankRationale(t *testing.T) {
	args := `{
		"platform_score": 5, "platform_rationale": "r",
		"question_score": 5, "question_rationale": "   ",
		"professionalism_score": 5, "professionalism_rationale": "r",
		"personalization_score": 5, "personalization_rationale": "r",
		"legal_score": 5, "legal_rationale": "r",
		"actionability_score": 5, "actionability_rationale": "r"}`

	scorecards := &fakeScorecardStore{}
	tool := NewReportTool(uuid.New(), scorecards, newFakeMessageStore())

	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Contains(t, result.Status, "question_rationale")
	assert.Empty(t, scorecards.created)
}

func TestReportTool_ExecuteMissingFieldsRejected(t *testing.T) {
	// Absent scores decode to zero, below the minimum.
	tool := NewReportTool(uuid.New(), &fakeScorecardStore{}, newFakeMessageStore())

	result, err := tool.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestReportTool_ExecuteMalformedJSON(t *testing.T) {
	tool := NewReportTool(uuid.New(), &fakeScorecardStore{}, newFakeMessageStore())

	result, err := tool.Execute(context.Background(), `{not json`)
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestReportTool_ExecuteAttachConflict(t *testing.T) {
	msg := repliedMessage()
	messages := newFakeMessageStore(msg)
	messages.attached[msg.ID] = 7

	tool := NewReportTool(msg.ID, &fakeScorecardStore{}, messages)

	_, err := tool.Execute(context.Background(), validReportArgs)
	assert.Error(t, err)
	// The original link survives.
	assert.Equal(t, int64(7), messages.attached[msg.ID])
}
