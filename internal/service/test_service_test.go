package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestDerivesTotals(t *testing.T) {
	f := newFixture(t)

	test := f.createTest(t, CreateTestReq{
		Type:         model.TestTypeMCQ,
		Questions:    twoQuestionMCQ(),
		PassingMarks: float(5),
	})
	assert.Equal(t, model.TestDraft, test.Status)
	assert.Equal(t, 2, test.TotalQuestions)
	assert.Equal(t, 10.0, test.TotalMarks)
	assert.Equal(t, 1, test.MaxAttempts)
	assert.Equal(t, f.teacher.ID, test.CreatorID)

	qs := f.reloadTest(t, test.ID).QuestionList()
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[0].QuestionNumber)
	assert.Equal(t, model.KindMCQ, qs[1].Kind)
	assert.Equal(t, model.OptionRef(1), *qs[1].CorrectOption)
}

func TestCreateTestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateTestReq
	}{
		{"unknown type", CreateTestReq{Type: "essay"}},
		{"negative duration", CreateTestReq{Type: model.TestTypeMCQ, Duration: -1}},
		{"sparse numbering", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{QuestionNumber: 1, Text: "a", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 1},
			{QuestionNumber: 3, Text: "b", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 1},
		}}},
		{"mixed numbering", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{QuestionNumber: 1, Text: "a", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 1},
			{Text: "b", Options: []string{"x", "y"}, CorrectOption: opt(0), Marks: 1},
		}}},
		{"correct option out of range", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{Text: "a", Options: []string{"x", "y"}, CorrectOption: opt(2), Marks: 1},
		}}},
		{"single option", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{Text: "a", Options: []string{"x"}, CorrectOption: opt(0), Marks: 1},
		}}},
		{"zero marks", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{Text: "a", Options: []string{"x", "y"}, CorrectOption: opt(0)},
		}}},
		{"subjective in mcq test", CreateTestReq{Type: model.TestTypeMCQ, Questions: []QuestionInput{
			{Kind: model.KindSubjective, Text: "a", Marks: 1},
		}}},
		{"total mismatch", CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), TotalMarks: float(12)}},
		{"passing above total", CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), PassingMarks: float(11)}},
		{"negative max attempts", CreateTestReq{Type: model.TestTypeMCQ, MaxAttempts: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.SubjectID = f.subjectID
			tc.req.Title = "Quiz"
			_, err := f.catalog.CreateTest(ctx, f.teacher, tc.req)
			assert.ErrorIs(t, err, util.ErrValidation)
		})
	}
}

func TestCreateTestRequiresSubjectOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := Actor{ID: 11, Role: model.Teacher}
	_, err := f.catalog.CreateTest(ctx, other, CreateTestReq{SubjectID: f.subjectID, Title: "Quiz", Type: model.TestTypeMCQ})
	assert.ErrorIs(t, err, util.ErrAuthorization)

	admin := Actor{ID: 1, Role: model.Admin}
	test, err := f.catalog.CreateTest(ctx, admin, CreateTestReq{SubjectID: f.subjectID, Title: "Quiz", Type: model.TestTypePDF})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, test.CreatorID)
}

func TestPublishTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ})
	_, err := f.catalog.PublishTest(ctx, f.teacher, empty.ID)
	assert.ErrorIs(t, err, util.ErrTestHasNoQuestions)

	test := f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	published, err := f.catalog.PublishTest(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TestActive, published.Status)
	require.NotNil(t, published.PublishedAt)

	_, err = f.catalog.PublishTest(ctx, f.teacher, test.ID)
	assert.ErrorIs(t, err, util.ErrTestAlreadyActive)

	// a pdf test may carry its paper as an upload only
	paper := f.createTest(t, CreateTestReq{Type: model.TestTypePDF, TotalMarks: float(20)})
	_, err = f.catalog.PublishTest(ctx, f.teacher, paper.ID)
	require.NoError(t, err)

	other := Actor{ID: 11, Role: model.Teacher}
	draft := f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	_, err = f.catalog.PublishTest(ctx, other, draft.ID)
	assert.ErrorIs(t, err, util.ErrNotTestOwner)
}

func TestUpdateTestFreezesStructureOnceAttempted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test := f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ(), Duration: 10})
	duration := 20
	updated, err := f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{Duration: &duration})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Duration)

	questions := append(twoQuestionMCQ(), QuestionInput{Text: "1+1?", Options: []string{"2", "3"}, CorrectOption: opt(0), Marks: 2})
	updated, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{Questions: &questions})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalQuestions)
	assert.Equal(t, 12.0, updated.TotalMarks)

	_, err = f.catalog.PublishTest(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	f.start(t, test.ID)

	duration = 30
	_, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{Duration: &duration})
	assert.ErrorIs(t, err, util.ErrTestStructureFrozen)
	_, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{Questions: &questions})
	assert.ErrorIs(t, err, util.ErrTestStructureFrozen)

	title := "Renamed"
	show := true
	updated, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{Title: &title, ShowCorrectAnswers: &show})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.ShowCorrectAnswers)
	assert.Equal(t, 20, updated.Duration)

	_, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{PassingMarks: float(13)})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestArchiveTestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})
	archived, err := f.catalog.ArchiveTest(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TestArchived, archived.Status)
	assert.False(t, archived.IsActive)
	require.NotNil(t, archived.ArchivedAt)

	again, err := f.catalog.ArchiveTest(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TestArchived, again.Status)
	assert.True(t, archived.ArchivedAt.Equal(*again.ArchivedAt))

	_, err = f.catalog.PublishTest(ctx, f.teacher, test.ID)
	assert.ErrorIs(t, err, util.ErrTestArchived)

	_, _, err = f.attempts.Start(ctx, f.student.ID, test.ID)
	assert.ErrorIs(t, err, util.ErrTestNotActive)
}

func TestListTestsByCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createTest(t, CreateTestReq{Type: model.TestTypeMCQ})
	f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})

	all, total, err := f.catalog.ListTests(ctx, f.teacher, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	active, total, err := f.catalog.ListTests(ctx, f.teacher, string(model.TestActive), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.TestActive, active[0].Status)

	_, _, err = f.catalog.ListAttempts(ctx, f.teacher, active[0].ID, "graded", 1, 10)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestChangingPassingMarksRecomputesPassRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	test := f.publishedTest(t, CreateTestReq{Type: model.TestTypeMCQ, Questions: twoQuestionMCQ()})

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
	assert.Nil(t, stats.PassRate)

	_, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{PassingMarks: float(10)})
	require.NoError(t, err)
	stats, err = f.catalog.Stats(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	require.NotNil(t, stats.PassRate)
	assert.Equal(t, 0.5, *stats.PassRate)

	low, err := f.repos.attempts.FindByID(b.ID)
	require.NoError(t, err)
	require.NotNil(t, low.Passed)
	assert.False(t, *low.Passed)

	_, err = f.catalog.UpdateTest(ctx, f.teacher, test.ID, UpdateTestReq{PassingMarks: float(5)})
	require.NoError(t, err)
	stats, err = f.catalog.Stats(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *stats.PassRate)

	low, err = f.repos.attempts.FindByID(b.ID)
	require.NoError(t, err)
	assert.True(t, *low.Passed)
}
