package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartResumesInProgressAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), Duration: 10})

	first, resumed, err := f.attempts.Start(ctx, f.student.ID, test.ID)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, model.AttemptInProgress, first.Status)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))

	f.clock.Advance(time.Minute)
	again, resumed, err := f.attempts.Start(ctx, f.student.ID, test.ID)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, first.ID, again.ID)

	n, err := f.repos.attempts.CountByStudentAndTest(test.ID, f.student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStartEnforcesAttemptCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	single := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), MaxAttempts: 3})
	a := f.start(t, single.ID)
	f.submit(t, a.ID, choose(1, 0))
	_, _, err := f.attempts.Start(ctx, f.student.ID, single.ID)
	assert.ErrorIs(t, err, util.ErrCapacity)

	multi := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), AllowMultipleAttempts: true, MaxAttempts: 2})
	a = f.start(t, multi.ID)
	f.submit(t, a.ID)
	second := f.start(t, multi.ID)
	assert.Equal(t, 2, second.AttemptNumber)
	f.submit(t, second.ID)
	_, _, err = f.attempts.Start(ctx, f.student.ID, multi.ID)
	assert.ErrorIs(t, err, util.ErrAttemptLimitReached)

	history, err := f.attempts.History(ctx, f.student, multi.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStartRequiresActiveTestAndEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	_, _, err := f.attempts.Start(ctx, f.student.ID, draft.ID)
	assert.ErrorIs(t, err, util.ErrState)

	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	_, _, err = f.attempts.Start(ctx, 77, test.ID)
	assert.ErrorIs(t, err, util.ErrAuthorization)

	_, _, err = f.attempts.Start(ctx, f.student.ID, "missing")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestSubmitScoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), PassingMarks: float(5), Duration: 10})
	a := f.start(t, test.ID)
	stale, err := f.repos.attempts.FindByID(a.ID)
	require.NoError(t, err)

	f.clock.Advance(90 * time.Second)
	done, err := f.attempts.Submit(ctx, f.student, a.ID, SubmitInput{Answers: []model.Answer{choose(1, 0), choose(2, 2)}, TimeSpent: 9999})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptEvaluated, done.Status)
	assert.Equal(t, 5.0, done.TotalScore)
	assert.Equal(t, 50.0, done.Percentage)
	require.NotNil(t, done.Passed)
	assert.True(t, *done.Passed)
	assert.Equal(t, 90, done.TimeSpent)
	assert.Equal(t, 9999, done.ClientTimeSpent)
	assert.False(t, done.AutoSubmitted)

	_, err = f.attempts.Submit(ctx, f.student, a.ID, SubmitInput{Answers: []model.Answer{choose(1, 0), choose(2, 1)}})
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	// a copy read before the first submit still loses the race
	_, err = f.attempts.ForceSubmit(ctx, stale)
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	stored, err := f.repos.attempts.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.TotalScore)
	assert.Nil(t, stored.ActiveSlot)

	stats, err := f.catalog.Stats(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAttempts)
	assert.Equal(t, 1, stats.EvaluatedCount)
}

func TestSubmitFromAnotherStudentIsDenied(t *testing.T) {
	f := newFixture(t)
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	a := f.start(t, test.ID)

	_, err := f.attempts.Submit(context.Background(), Actor{ID: 99, Role: model.Student}, a.ID, SubmitInput{})
	assert.ErrorIs(t, err, util.ErrAuthorization)
}

func TestLateSubmitIsClampedAndFlagged(t *testing.T) {
	f := newFixture(t)
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), Duration: 10})
	a := f.start(t, test.ID)

	f.clock.Advance(10*time.Minute + 30*time.Second)
	done := f.submit(t, a.ID, choose(1, 0), choose(2, 1))
	assert.Equal(t, 600, done.TimeSpent)
	assert.True(t, done.AutoSubmitted)
	assert.Equal(t, 10.0, done.TotalScore)
}

func TestSubmitWithinToleranceIsAccepted(t *testing.T) {
	f := newFixture(t)
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), Duration: 10})
	a := f.start(t, test.ID)

	f.clock.Advance(10*time.Minute + 3*time.Second)
	done := f.submit(t, a.ID, choose(1, 0))
	assert.Equal(t, 603, done.TimeSpent)
	assert.False(t, done.AutoSubmitted)
}

func TestSubmitRejectsUnknownQuestion(t *testing.T) {
	f := newFixture(t)
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	a := f.start(t, test.ID)

	_, err := f.attempts.Submit(context.Background(), f.student, a.ID, SubmitInput{Answers: []model.Answer{choose(3, 0)}})
	assert.ErrorIs(t, err, util.ErrValidation)

	// the attempt stays open after a rejected payload
	done := f.submit(t, a.ID, choose(1, 0))
	assert.Equal(t, 5.0, done.TotalScore)
}

func TestShuffledLayoutIsStablePerAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attempts.seed = func() int64 { return 42 }

	var questions []QuestionInput
	for i := 0; i < 6; i++ {
		questions = append(questions, QuestionInput{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectOption: opt(0), Marks: 1})
	}
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: questions, ShuffleQuestions: true, ShuffleOptions: true})
	a := f.start(t, test.ID)

	first, err := f.attempts.View(ctx, f.student, a.ID)
	require.NoError(t, err)
	second, err := f.attempts.View(ctx, f.student, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Questions, second.Questions)
	assert.Equal(t, BuildLayout(test, 42).Order, a.Layout.Data().Order)

	var numbers []int
	for _, q := range first.Questions {
		numbers = append(numbers, q.QuestionNumber)
		require.Len(t, q.Options, 4)
		var idx []int
		for _, o := range q.Options {
			idx = append(idx, int(o.Index))
		}
		sort.Ints(idx)
		assert.Equal(t, []int{0, 1, 2, 3}, idx)
	}
	sort.Ints(numbers)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, numbers)
}

func TestViewIncludesDraftAndRemainingTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), Duration: 10})
	a := f.start(t, test.ID)

	require.NoError(t, f.attempts.SaveDraft(ctx, f.student, a.ID, []model.Answer{choose(2, 1)}))
	f.clock.Advance(4 * time.Minute)

	view, err := f.attempts.View(ctx, f.student, a.ID)
	require.NoError(t, err)
	require.NotNil(t, view.RemainingSeconds)
	assert.Equal(t, 360, *view.RemainingSeconds)
	require.Len(t, view.Draft, 1)
	assert.Equal(t, 2, view.Draft[0].QuestionNumber)
	for _, q := range view.Questions {
		assert.NotEmpty(t, q.Options)
	}

	err = f.attempts.SaveDraft(ctx, f.student, a.ID, []model.Answer{choose(1, 5)})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestResultReleaseRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	a := f.start(t, held.ID)
	_, err := f.attempts.Result(ctx, f.student, a.ID)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)

	f.submit(t, a.ID, choose(1, 0), choose(2, 2))
	res, err := f.attempts.Result(ctx, f.student, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.TotalScore)
	require.Len(t, res.Items, 2)
	assert.Nil(t, res.Items[0].CorrectOption)

	owner, err := f.attempts.Result(ctx, f.teacher, a.ID)
	require.NoError(t, err)
	require.NotNil(t, owner.Items[1].CorrectOption)
	assert.Equal(t, model.OptionRef(1), *owner.Items[1].CorrectOption)

	_, err = f.attempts.Result(ctx, Actor{ID: 99, Role: model.Student}, a.ID)
	assert.ErrorIs(t, err, util.ErrAuthorization)
}

func TestResultWithheldUntilGraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMixed, Questions: []QuestionInput{
		{Text: "pick", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 2},
		{Text: "explain", Marks: 8},
	}, ShowCorrectAnswers: true})
	a := f.start(t, test.ID)
	done := f.submit(t, a.ID, choose(1, 0), model.Answer{QuestionNumber: 2, Text: "because"})
	assert.Equal(t, model.AttemptSubmitted, done.Status)
	assert.True(t, done.ResultWithheld)
	assert.Zero(t, done.TotalScore)
	assert.Nil(t, done.Passed)
	assert.Nil(t, done.AnswerList()[0].IsCorrect)

	_, err := f.attempts.Result(ctx, f.student, a.ID)
	assert.ErrorIs(t, err, util.ErrResultNotReleased)

	_, err = f.grading.Grade(ctx, f.teacher, a.ID, GradeInput{Marks: []QuestionMark{{QuestionNumber: 2, MarksAwarded: 6}}})
	require.NoError(t, err)

	res, err := f.attempts.Result(ctx, f.student, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptEvaluated, res.Status)
	assert.Equal(t, 8.0, res.TotalScore)
	require.NotNil(t, res.Items[0].CorrectOption)
}

func TestUnreleasedScoreHiddenEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMixed, Questions: []QuestionInput{
		{Text: "pick", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 5},
		{Text: "explain", Marks: 5},
	}, PassingMarks: float(5)})
	a := f.start(t, test.ID)
	f.submit(t, a.ID, choose(1, 0), model.Answer{QuestionNumber: 2, Text: "because"})

	history, err := f.attempts.History(ctx, f.student, test.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].ResultWithheld)
	assert.Zero(t, history[0].TotalScore)
	assert.Nil(t, history[0].Passed)
	for _, answer := range history[0].AnswerList() {
		assert.Nil(t, answer.IsCorrect)
		assert.Zero(t, answer.MarksAwarded)
	}

	view, err := f.attempts.View(ctx, f.student, a.ID)
	require.NoError(t, err)
	assert.True(t, view.Attempt.ResultWithheld)
	assert.Zero(t, view.Attempt.TotalScore)

	owner, err := f.attempts.View(ctx, f.teacher, a.ID)
	assert.ErrorIs(t, err, util.ErrAuthorization)
	assert.Nil(t, owner)

	stored, err := f.repos.attempts.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.TotalScore)
	require.NotNil(t, stored.Passed)
	assert.True(t, *stored.Passed)

	_, err = f.grading.Grade(ctx, f.teacher, a.ID, GradeInput{Marks: []QuestionMark{{QuestionNumber: 2, MarksAwarded: 3}}})
	require.NoError(t, err)
	history, err = f.attempts.History(ctx, f.student, test.ID)
	require.NoError(t, err)
	assert.False(t, history[0].ResultWithheld)
	assert.Equal(t, 8.0, history[0].TotalScore)
}

func TestResultListsUnansweredQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), ShowResultsImmediately: true})
	a := f.start(t, test.ID)
	f.submit(t, a.ID, choose(1, 0))

	res, err := f.attempts.Result(ctx, f.student, a.ID)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 5.0, res.Items[0].MarksAwarded)
	assert.Equal(t, 2, res.Items[1].QuestionNumber)
	assert.Nil(t, res.Items[1].SelectedOption)
	assert.Zero(t, res.Items[1].MarksAwarded)
	require.NotNil(t, res.Items[1].IsCorrect)
	assert.False(t, *res.Items[1].IsCorrect)
}

func TestStatsAverageEvaluatedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), PassingMarks: float(10)})

	a := f.start(t, test.ID)
	f.submit(t, a.ID, choose(1, 0), choose(2, 1))

	other := Actor{ID: 21, Role: model.Student}
	_, err := f.progress.Enroll(ctx, other.ID, f.subjectID)
	require.NoError(t, err)
	b, _, err := f.attempts.Start(ctx, other.ID, test.ID)
	require.NoError(t, err)
	_, err = f.attempts.Submit(ctx, other, b.ID, SubmitInput{Answers: []model.Answer{choose(1, 0)}})
	require.NoError(t, err)

	stats, err := f.catalog.Stats(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 0, stats.PendingCount)
	require.NotNil(t, stats.AvgScore)
	assert.Equal(t, 7.5, *stats.AvgScore)
	assert.Equal(t, 75.0, *stats.AvgPercentage)
	require.NotNil(t, stats.PassRate)
	assert.Equal(t, 0.5, *stats.PassRate)

	list, total, err := f.catalog.ListAttempts(ctx, f.teacher, test.ID, model.AttemptEvaluated, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)
}
