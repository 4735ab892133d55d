package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/logger"
	"edu_assessment_backend/pkg/monitoring"
	"edu_assessment_backend/pkg/tracing"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	submitSourceStudent = "student"
	submitSourceSweep   = "sweep"
)

type AttemptService struct {
	Tests       *repository.TestRepository
	Attempts    *repository.AttemptRepository
	Enrollments *repository.EnrollmentRepository
	Drafts      DraftBuffer
	Supervisor  *Supervisor
	DraftTTL    time.Duration

	now  func() time.Time
	seed func() int64
}

func NewAttemptService(
	tests *repository.TestRepository,
	attempts *repository.AttemptRepository,
	enrollments *repository.EnrollmentRepository,
	drafts DraftBuffer,
	supervisor *Supervisor,
	draftTTL time.Duration,
) *AttemptService {
	return &AttemptService{
		Tests:       tests,
		Attempts:    attempts,
		Enrollments: enrollments,
		Drafts:      drafts,
		Supervisor:  supervisor,
		DraftTTL:    draftTTL,
		now:         time.Now,
		seed:        func() int64 { return time.Now().UnixNano() },
	}
}

// Start returns the student's in-progress attempt, or creates the next one.
// The second return value is true when an existing attempt was resumed.
func (s *AttemptService) Start(ctx context.Context, studentID uint, testID string) (*model.Attempt, bool, error) {
	test, err := s.Tests.FindByID(testID)
	if err != nil {
		return nil, false, err
	}
	if test.Status != model.TestActive || !test.IsActive {
		return nil, false, util.ErrTestNotActive
	}

	enrolled, err := s.Enrollments.IsEnrolled(studentID, test.SubjectID)
	if err != nil {
		return nil, false, err
	}
	if !enrolled {
		return nil, false, util.ErrNotEnrolled
	}

	if existing, err := s.Attempts.FindInProgress(testID, studentID); err != nil {
		return nil, false, err
	} else if existing != nil {
		monitoring.AttemptsStarted.WithLabelValues("true").Inc()
		return existing, true, nil
	}

	prior, err := s.Attempts.CountByStudentAndTest(testID, studentID)
	if err != nil {
		return nil, false, err
	}
	if int(prior) >= test.AttemptLimit() {
		return nil, false, util.ErrAttemptLimitReached
	}

	seed := s.seed()
	attempt := model.NewAttempt(testID, studentID, int(prior)+1, seed, s.now(), test.DurationLimit())
	attempt.Layout = datatypes.NewJSONType(BuildLayout(test, seed))

	if err := s.Attempts.Create(attempt); err != nil {
		// Lost a race on the unique in-progress slot: hand back the winner.
		existing, findErr := s.Attempts.FindInProgress(testID, studentID)
		if findErr == nil && existing != nil {
			monitoring.AttemptsStarted.WithLabelValues("true").Inc()
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("%w: concurrent start, retry", util.ErrState)
	}

	monitoring.AttemptsStarted.WithLabelValues("false").Inc()
	logger.Log.Info("Attempt started",
		zap.String("attemptId", attempt.ID),
		zap.String("testId", testID),
		zap.Uint("studentId", studentID),
		zap.Int("attemptNumber", attempt.AttemptNumber))
	return attempt, false, nil
}

// AttemptView is what a student sees while taking a test.
type AttemptView struct {
	Attempt          *model.Attempt `json:"attempt"`
	Title            string         `json:"title"`
	Instructions     string         `json:"instructions,omitempty"`
	Duration         int            `json:"duration"`
	TotalMarks       float64        `json:"totalMarks"`
	Questions        []QuestionView `json:"questions"`
	RemainingSeconds *int           `json:"remainingSeconds"`
	Draft            []model.Answer `json:"draft,omitempty"`
	Resumed          bool           `json:"resumed"`
}

func (s *AttemptService) ownAttempt(actor Actor, attemptID string) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != actor.ID && !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

func (s *AttemptService) View(ctx context.Context, actor Actor, attemptID string) (*AttemptView, error) {
	attempt, err := s.ownAttempt(actor, attemptID)
	if err != nil {
		return nil, err
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}

	view := &AttemptView{
		Attempt:      attempt,
		Title:        test.Title,
		Instructions: test.Instructions,
		Duration:     test.Duration,
		TotalMarks:   test.TotalMarks,
		Questions:    ApplyLayout(test, attempt.Layout.Data()),
	}
	if resultWithheld(actor, test, attempt) {
		attempt.WithholdResult()
	}
	if attempt.Status == model.AttemptInProgress {
		view.RemainingSeconds = s.Supervisor.Remaining(attempt, test.DurationLimit(), s.now())
		draft, err := s.Drafts.LoadDraft(ctx, attempt.ID)
		if err != nil {
			logger.Log.Warn("Failed to load draft", zap.String("attemptId", attempt.ID), zap.Error(err))
		}
		view.Draft = draft
	}
	return view, nil
}

// SaveDraft buffers answers between start and submit. It is not durable.
func (s *AttemptService) SaveDraft(ctx context.Context, actor Actor, attemptID string, answers []model.Answer) error {
	attempt, err := s.ownAttempt(actor, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptInProgress {
		return util.ErrAlreadySubmitted
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return err
	}
	answers, err = ValidateAnswers(test, answers)
	if err != nil {
		return err
	}
	return s.Drafts.SaveDraft(ctx, attempt.ID, answers, s.DraftTTL)
}

// SubmitInput is the bulk answer payload sent at submit.
type SubmitInput struct {
	Answers   []model.Answer `json:"answers"`
	TimeSpent int            `json:"timeSpent"`
}

func (s *AttemptService) Submit(ctx context.Context, actor Actor, attemptID string, input SubmitInput) (*model.Attempt, error) {
	attempt, err := s.ownAttempt(actor, attemptID)
	if err != nil {
		return nil, err
	}
	attempt, err = s.submit(ctx, attempt, input.Answers, input.TimeSpent, submitSourceStudent)
	if err != nil {
		return nil, err
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}
	if resultWithheld(actor, test, attempt) {
		attempt.WithholdResult()
	}
	return attempt, nil
}

// ForceSubmit closes an expired attempt with its last buffered answers.
func (s *AttemptService) ForceSubmit(ctx context.Context, attempt *model.Attempt) (*model.Attempt, error) {
	answers, err := s.Drafts.LoadDraft(ctx, attempt.ID)
	if err != nil {
		logger.Log.Warn("Draft unavailable, submitting empty answer set",
			zap.String("attemptId", attempt.ID),
			zap.Error(err))
		answers = nil
	}
	return s.submit(ctx, attempt, answers, 0, submitSourceSweep)
}

func (s *AttemptService) submit(ctx context.Context, attempt *model.Attempt, answers []model.Answer, clientTimeSpent int, source string) (*model.Attempt, error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.submit",
		attribute.String("attempt.id", attempt.ID),
		attribute.String("submit.source", source))
	defer span.End()

	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAlreadySubmitted
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	check := s.Supervisor.Check(attempt, test.DurationLimit(), now)
	score, err := ScoreAnswers(test, answers)
	if err != nil {
		return nil, err
	}

	expected := attempt.Version
	attempt.Status = score.Status
	attempt.SetAnswers(score.Answers)
	attempt.TotalScore = score.TotalScore
	attempt.Percentage = score.Percentage
	attempt.Passed = score.Passed
	attempt.SubmittedAt = &now
	attempt.TimeSpent = check.TimeSpent
	attempt.ClientTimeSpent = clientTimeSpent
	attempt.AutoSubmitted = check.AutoSubmitted
	if score.Status == model.AttemptEvaluated {
		attempt.GradedAt = &now
	}

	err = s.Attempts.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.Attempts.WithTx(tx).CompleteSubmit(attempt, expected)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrAlreadySubmitted
		}
		return s.Tests.WithTx(tx).ApplyStats(test.ID, submitDelta(score))
	})
	if err != nil {
		return nil, err
	}
	attempt.Version = expected + 1
	attempt.ActiveSlot = nil

	if err := s.Drafts.DropDraft(ctx, attempt.ID); err != nil {
		logger.Log.Warn("Failed to drop draft", zap.String("attemptId", attempt.ID), zap.Error(err))
	}

	monitoring.AttemptsSubmitted.WithLabelValues(string(attempt.Status), source).Inc()
	logger.Log.Info("Attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.String("status", string(attempt.Status)),
		zap.String("source", source),
		zap.Bool("autoSubmitted", attempt.AutoSubmitted),
		zap.Int("timeSpent", attempt.TimeSpent),
		zap.Float64("totalScore", attempt.TotalScore))
	return attempt, nil
}

func submitDelta(score Score) repository.StatsDelta {
	d := repository.StatsDelta{Attempts: 1}
	if score.Status == model.AttemptEvaluated {
		d = withOutcome(d, score.TotalScore, score.Percentage, score.Passed, 1)
	}
	return d
}

// ResultItem is one question of a result breakdown.
type ResultItem struct {
	QuestionNumber int                `json:"questionNumber"`
	Kind           model.QuestionKind `json:"kind"`
	Text           string             `json:"text,omitempty"`
	Marks          float64            `json:"marks"`
	SelectedOption *model.OptionRef   `json:"selectedOption,omitempty"`
	AnswerText     string             `json:"answerText,omitempty"`
	FileURL        string             `json:"fileUrl,omitempty"`
	IsCorrect      *bool              `json:"isCorrect"`
	MarksAwarded   float64            `json:"marksAwarded"`
	Pending        bool               `json:"pending"`
	CorrectOption  *model.OptionRef   `json:"correctOption,omitempty"`
	Explanation    string             `json:"explanation,omitempty"`
}

type AttemptResult struct {
	AttemptID     string              `json:"attemptId"`
	TestID        string              `json:"testId"`
	AttemptNumber int                 `json:"attemptNumber"`
	Status        model.AttemptStatus `json:"status"`
	TotalScore    float64             `json:"totalScore"`
	TotalMarks    float64             `json:"totalMarks"`
	Percentage    float64             `json:"percentage"`
	PassingMarks  *float64            `json:"passingMarks,omitempty"`
	Passed        *bool               `json:"passed"`
	TimeSpent     int                 `json:"timeSpent"`
	AutoSubmitted bool                `json:"autoSubmitted"`
	SubmittedAt   *time.Time          `json:"submittedAt,omitempty"`
	GradedAt      *time.Time          `json:"gradedAt,omitempty"`
	Feedback      string              `json:"feedback,omitempty"`
	Items         []ResultItem        `json:"items"`
}

// Result returns the score breakdown. Students see it once the attempt is
// evaluated, or right after submit when the test releases results
// immediately. The test owner always sees it. Every question is listed,
// answered or not.
func (s *AttemptService) Result(ctx context.Context, actor Actor, attemptID string) (*AttemptResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}

	owner := actor.Owns(test.CreatorID)
	if attempt.StudentID != actor.ID && !owner {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status == model.AttemptInProgress {
		return nil, util.ErrAttemptInProgress
	}
	if resultWithheld(actor, test, attempt) {
		return nil, util.ErrResultNotReleased
	}

	revealKey := owner || test.ShowCorrectAnswers
	res := &AttemptResult{
		AttemptID:     attempt.ID,
		TestID:        test.ID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		TotalScore:    attempt.TotalScore,
		TotalMarks:    test.TotalMarks,
		Percentage:    attempt.Percentage,
		PassingMarks:  test.PassingMarks,
		Passed:        attempt.Passed,
		TimeSpent:     attempt.TimeSpent,
		AutoSubmitted: attempt.AutoSubmitted,
		SubmittedAt:   attempt.SubmittedAt,
		GradedAt:      attempt.GradedAt,
		Feedback:      attempt.Feedback,
	}
	answers := make(map[int]model.Answer, len(attempt.AnswerList()))
	for _, a := range attempt.AnswerList() {
		answers[a.QuestionNumber] = a
	}
	for _, q := range gradedQuestions(test) {
		item := ResultItem{
			QuestionNumber: q.QuestionNumber,
			Kind:           q.Kind,
			Text:           q.Text,
			Marks:          q.Marks,
		}
		if a, ok := answers[q.QuestionNumber]; ok {
			item.SelectedOption = a.SelectedOption
			item.AnswerText = a.Text
			item.FileURL = a.FileURL
			item.IsCorrect = a.IsCorrect
			item.MarksAwarded = a.MarksAwarded
			item.Pending = a.Pending
		} else if q.Kind == model.KindMCQ {
			wrong := false
			item.IsCorrect = &wrong
		} else {
			item.Pending = attempt.Status == model.AttemptSubmitted
		}
		if revealKey {
			item.CorrectOption = q.CorrectOption
			item.Explanation = q.Explanation
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

// History lists a student's attempts at a test.
func (s *AttemptService) History(ctx context.Context, actor Actor, testID string) ([]model.Attempt, error) {
	test, err := s.Tests.FindByID(testID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListByStudentAndTest(testID, actor.ID)
	if err != nil {
		return nil, err
	}
	for i := range attempts {
		if resultWithheld(actor, test, &attempts[i]) {
			attempts[i].WithholdResult()
		}
	}
	return attempts, nil
}

// resultWithheld reports whether the actor may not see the attempt's score
// yet. Owners always can; students wait for grading unless the test releases
// results on submit.
func resultWithheld(actor Actor, test *model.Test, attempt *model.Attempt) bool {
	return !actor.Owns(test.CreatorID) && attempt.Status == model.AttemptSubmitted && !test.ShowResultsImmediately
}
