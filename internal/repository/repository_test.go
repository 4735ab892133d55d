package repository

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTest(t *testing.T, db *gorm.DB) *model.Test {
	t.Helper()
	test := &model.Test{CreatorID: 1, SubjectID: "subject", Title: "Quiz", Type: model.TestTypeMCQ, Status: model.TestActive, IsActive: true}
	test.SetQuestions([]model.Question{{QuestionNumber: 1, Kind: model.KindMCQ, Text: "q", Options: []string{"a", "b"}, Marks: 1}})
	require.NoError(t, NewTestRepository(db).Create(test))
	return test
}

func TestSingleInProgressAttemptPerStudent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttemptRepository(db)
	test := seedTest(t, db)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	first := model.NewAttempt(test.ID, 7, 1, 1, now, 10*time.Minute)
	require.NoError(t, repo.Create(first))

	second := model.NewAttempt(test.ID, 7, 2, 2, now, 10*time.Minute)
	assert.Error(t, repo.Create(second))

	running, err := repo.FindInProgress(test.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, first.ID, running.ID)

	// finishing frees the slot for the next attempt
	first.Status = model.AttemptEvaluated
	ok, err := repo.CompleteSubmit(first, first.Version)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompleteSubmit(first, first.Version)
	require.NoError(t, err)
	assert.False(t, ok)

	third := model.NewAttempt(test.ID, 7, 2, 3, now, 10*time.Minute)
	require.NoError(t, repo.Create(third))

	none, err := repo.FindInProgress(test.ID, 8)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSaveGradeChecksVersion(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttemptRepository(db)
	test := seedTest(t, db)

	a := model.NewAttempt(test.ID, 7, 1, 1, time.Now(), 0)
	require.NoError(t, repo.Create(a))
	a.Status = model.AttemptSubmitted
	ok, err := repo.CompleteSubmit(a, 1)
	require.NoError(t, err)
	require.True(t, ok)

	a.Status = model.AttemptEvaluated
	a.TotalScore = 1
	ok, err = repo.SaveGrade(a, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SaveGrade(a, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)
	assert.Equal(t, model.AttemptEvaluated, stored.Status)
}

func TestListExpired(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttemptRepository(db)
	test := seedTest(t, db)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	timed := model.NewAttempt(test.ID, 1, 1, 1, now, 5*time.Minute)
	untimed := model.NewAttempt(test.ID, 2, 1, 1, now, 0)
	later := model.NewAttempt(test.ID, 3, 1, 1, now, 30*time.Minute)
	for _, a := range []*model.Attempt{timed, untimed, later} {
		require.NoError(t, repo.Create(a))
	}

	expired, err := repo.ListExpired(now.Add(10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, timed.ID, expired[0].ID)
}

func TestApplyStatsAccumulates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTestRepository(db)
	test := seedTest(t, db)

	require.NoError(t, repo.ApplyStats(test.ID, StatsDelta{Attempts: 1, Evaluated: 1, Passed: 1, Score: 8, Percentage: 80}))
	require.NoError(t, repo.ApplyStats(test.ID, StatsDelta{Attempts: 1}))
	require.NoError(t, repo.ApplyStats(test.ID, StatsDelta{Evaluated: 1, Score: 4, Percentage: 40}))

	stored, err := repo.FindByID(test.ID)
	require.NoError(t, err)
	stats := stored.Stats()
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 2, stats.EvaluatedCount)
	require.NotNil(t, stats.AvgScore)
	assert.Equal(t, 6.0, *stats.AvgScore)
	assert.Equal(t, 60.0, *stats.AvgPercentage)
	assert.Nil(t, stats.PassRate)
}

func TestUpdateStructureRefusedOnceAttempted(t *testing.T) {
	db := testutil.NewDB(t)
	tests := NewTestRepository(db)
	test := seedTest(t, db)

	ok, err := tests.UpdateStructure(test.ID, map[string]interface{}{"duration": 15})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, NewAttemptRepository(db).Create(model.NewAttempt(test.ID, 1, 1, 1, time.Now(), 0)))
	ok, err = tests.UpdateStructure(test.ID, map[string]interface{}{"duration": 20})
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := tests.FindByID(test.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.Duration)
}

func TestSectionViewsAreASet(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEnrollmentRepository(db)
	enrollment := &model.Enrollment{StudentID: 1, SubjectID: "subject"}
	require.NoError(t, repo.Create(enrollment))

	for _, idx := range []int{2, 0, 2, 1, 0} {
		require.NoError(t, repo.AddSectionView(enrollment.ID, 3, idx))
	}
	require.NoError(t, repo.AddSectionView(enrollment.ID, 4, 0))

	indexes, err := repo.SectionIndexes(enrollment.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indexes)

	all, err := repo.AllSectionIndexes(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int][]int{3: {0, 1, 2}, 4: {0}}, all)

	first, err := repo.FindOrCreateModule(enrollment.ID, 3)
	require.NoError(t, err)
	again, err := repo.FindOrCreateModule(enrollment.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestSetCourseProgressStampsCompletionOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewEnrollmentRepository(db)
	enrollment := &model.Enrollment{StudentID: 1, SubjectID: "subject"}
	require.NoError(t, repo.Create(enrollment))

	done := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetCourseProgress(enrollment.ID, 100, done))
	require.NoError(t, repo.SetCourseProgress(enrollment.ID, 100, done.Add(time.Hour)))

	stored, err := repo.FindByID(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, done.Equal(*stored.CompletedAt))
}
