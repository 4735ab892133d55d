package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/testutil"
	"edu_assessment_backend/pkg/cache"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *testutil.Clock
	store *cache.MemoryCache
	repos struct {
		tests       *repository.TestRepository
		attempts    *repository.AttemptRepository
		enrollments *repository.EnrollmentRepository
		subjects    *repository.SubjectRepository
	}
	supervisor *Supervisor
	catalog    *TestService
	attempts   *AttemptService
	grading    *GradingService
	progress   *ProgressService
	sweeper    *Sweeper

	teacher      Actor
	student      Actor
	subjectID    string
	enrollmentID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:      testutil.NewDB(t),
		clock:   testutil.NewClock(),
		store:   cache.NewMemoryCache(),
		teacher: Actor{ID: 10, Role: model.Teacher},
		student: Actor{ID: 20, Role: model.Student},
	}
	f.repos.tests = repository.NewTestRepository(f.db)
	f.repos.attempts = repository.NewAttemptRepository(f.db)
	f.repos.enrollments = repository.NewEnrollmentRepository(f.db)
	f.repos.subjects = repository.NewSubjectRepository(f.db)

	f.supervisor = NewSupervisor(5 * time.Second)
	f.catalog = NewTestService(f.repos.tests, f.repos.attempts, f.repos.subjects)
	f.catalog.now = f.clock.Now
	f.attempts = NewAttemptService(f.repos.tests, f.repos.attempts, f.repos.enrollments, f.store, f.supervisor, time.Hour)
	f.attempts.now = f.clock.Now
	f.grading = NewGradingService(f.repos.tests, f.repos.attempts)
	f.grading.now = f.clock.Now
	f.progress = NewProgressService(f.repos.enrollments, f.repos.subjects)
	f.progress.now = f.clock.Now
	f.sweeper = NewSweeper(f.repos.attempts, f.attempts, f.store, f.supervisor, 50, time.Minute)
	f.sweeper.now = f.clock.Now

	ctx := context.Background()
	subject, err := f.progress.CreateSubject(ctx, f.teacher.ID, "Algebra")
	require.NoError(t, err)
	f.subjectID = subject.ID

	enrollment, err := f.progress.Enroll(ctx, f.student.ID, subject.ID)
	require.NoError(t, err)
	f.enrollmentID = enrollment.ID
	return f
}

func opt(n int) *model.OptionRef {
	r := model.OptionRef(n)
	return &r
}

func float(v float64) *float64 {
	return &v
}

// twoQuestionMCQ is marks [5,5] with correct answers [A,B].
func twoQuestionMCQ() []QuestionInput {
	return []QuestionInput{
		{Text: "2+2?", Options: []string{"4", "5", "6"}, CorrectOption: opt(0), Marks: 5},
		{Text: "3+3?", Options: []string{"5", "6", "7"}, CorrectOption: opt(1), Marks: 5},
	}
}

func (f *fixture) createTest(t *testing.T, req CreateTestReq) *model.Test {
	t.Helper()
	if req.SubjectID == "" {
		req.SubjectID = f.subjectID
	}
	if req.Title == "" {
		req.Title = "Quiz"
	}
	test, err := f.catalog.CreateTest(context.Background(), f.teacher, req)
	require.NoError(t, err)
	return test
}

func (f *fixture) publishedTest(t *testing.T, req CreateTestReq) *model.Test {
	t.Helper()
	test := f.createTest(t, req)
	test, err := f.catalog.PublishTest(context.Background(), f.teacher, test.ID)
	require.NoError(t, err)
	return test
}

func (f *fixture) reloadTest(t *testing.T, id string) *model.Test {
	t.Helper()
	test, err := f.repos.tests.FindByID(id)
	require.NoError(t, err)
	return test
}

func (f *fixture) start(t *testing.T, testID string) *model.Attempt {
	t.Helper()
	attempt, _, err := f.attempts.Start(context.Background(), f.student.ID, testID)
	require.NoError(t, err)
	return attempt
}

func (f *fixture) submit(t *testing.T, attemptID string, answers ...model.Answer) *model.Attempt {
	t.Helper()
	attempt, err := f.attempts.Submit(context.Background(), f.student, attemptID, SubmitInput{Answers: answers})
	require.NoError(t, err)
	return attempt
}

func choose(question, option int) model.Answer {
	return model.Answer{QuestionNumber: question, SelectedOption: opt(option)}
}
