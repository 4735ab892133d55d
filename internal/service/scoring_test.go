package service

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcqTest(marks []float64, correct []int, passing *float64) *model.Test {
	test := &model.Test{Type: model.TestTypeMCQ, PassingMarks: passing}
	qs := make([]model.Question, len(marks))
	for i := range marks {
		qs[i] = model.Question{
			QuestionNumber: i + 1,
			Kind:           model.KindMCQ,
			Text:           "q",
			Options:        []string{"a", "b", "c", "d"},
			CorrectOption:  opt(correct[i]),
			Marks:          marks[i],
		}
		test.TotalMarks += marks[i]
	}
	test.SetQuestions(qs)
	return test
}

func TestScoreAnswersIsDeterministic(t *testing.T) {
	test := mcqTest([]float64{5, 5}, []int{0, 1}, nil)

	score, err := ScoreAnswers(test, []model.Answer{choose(1, 0), choose(2, 2)})
	require.NoError(t, err)

	assert.Equal(t, 5.0, score.TotalScore)
	assert.Equal(t, 50.0, score.Percentage)
	assert.Equal(t, model.AttemptEvaluated, score.Status)
	assert.Nil(t, score.Passed)
	require.Len(t, score.Answers, 2)
	assert.True(t, *score.Answers[0].IsCorrect)
	assert.False(t, *score.Answers[1].IsCorrect)
	assert.Equal(t, 0.0, score.Answers[1].MarksAwarded)
}

func TestScoreAnswersPassBoundary(t *testing.T) {
	test := mcqTest([]float64{50, 49, 1}, []int{0, 0, 0}, float(50))

	atBoundary, err := ScoreAnswers(test, []model.Answer{choose(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 50.0, atBoundary.TotalScore)
	require.NotNil(t, atBoundary.Passed)
	assert.True(t, *atBoundary.Passed)

	below, err := ScoreAnswers(test, []model.Answer{choose(2, 0)})
	require.NoError(t, err)
	assert.Equal(t, 49.0, below.TotalScore)
	require.NotNil(t, below.Passed)
	assert.False(t, *below.Passed)
}

func TestScoreAnswersLaterAnswerReplacesEarlier(t *testing.T) {
	test := mcqTest([]float64{5, 5}, []int{0, 1}, nil)

	score, err := ScoreAnswers(test, []model.Answer{choose(2, 1), choose(1, 3), choose(1, 0)})
	require.NoError(t, err)

	require.Len(t, score.Answers, 2)
	assert.Equal(t, 1, score.Answers[0].QuestionNumber)
	assert.Equal(t, model.OptionRef(0), *score.Answers[0].SelectedOption)
	assert.Equal(t, 10.0, score.TotalScore)
}

func TestScoreAnswersLeavesSubjectivePending(t *testing.T) {
	test := &model.Test{Type: model.TestTypeMixed, TotalMarks: 15}
	test.SetQuestions([]model.Question{
		{QuestionNumber: 1, Kind: model.KindMCQ, Text: "q1", Options: []string{"x", "y"}, CorrectOption: opt(1), Marks: 5},
		{QuestionNumber: 2, Kind: model.KindSubjective, Text: "q2", Marks: 10},
	})

	score, err := ScoreAnswers(test, []model.Answer{
		choose(1, 1),
		{QuestionNumber: 2, Text: "because"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.AttemptSubmitted, score.Status)
	assert.Equal(t, 5.0, score.TotalScore)
	assert.Nil(t, score.Answers[1].IsCorrect)
	assert.True(t, score.Answers[1].Pending)
}

func TestScoreAnswersUnansweredContributeNothing(t *testing.T) {
	test := mcqTest([]float64{5, 5, 10}, []int{0, 1, 2}, float(10))

	score, err := ScoreAnswers(test, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.TotalScore)
	assert.Equal(t, 0.0, score.Percentage)
	assert.False(t, *score.Passed)
	assert.Empty(t, score.Answers)
}

func TestScoreAnswersRejectsUnknownQuestionAndOption(t *testing.T) {
	test := mcqTest([]float64{5}, []int{0}, nil)

	_, err := ScoreAnswers(test, []model.Answer{choose(3, 0)})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = ScoreAnswers(test, []model.Answer{choose(1, 7)})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestScoreAnswersWholePaperPDF(t *testing.T) {
	test := &model.Test{Type: model.TestTypePDF}
	test.SetQuestions(nil)

	score, err := ScoreAnswers(test, []model.Answer{{QuestionNumber: 0, FileURL: "/uploads/a.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, score.Status)
	assert.Equal(t, 0.0, score.Percentage)
	assert.True(t, score.Answers[0].Pending)

	_, err = ScoreAnswers(test, []model.Answer{{QuestionNumber: 1, FileURL: "/uploads/a.pdf"}})
	assert.ErrorIs(t, err, util.ErrValidation)
}
