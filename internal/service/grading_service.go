package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/logger"
	"edu_assessment_backend/pkg/monitoring"
	"edu_assessment_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GradingService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	now      func() time.Time
}

func NewGradingService(tests *repository.TestRepository, attempts *repository.AttemptRepository) *GradingService {
	return &GradingService{Tests: tests, Attempts: attempts, now: time.Now}
}

type QuestionMark struct {
	QuestionNumber int     `json:"questionNumber"`
	MarksAwarded   float64 `json:"marksAwarded"`
}

type GradeInput struct {
	Marks    []QuestionMark `json:"marks"`
	Feedback string         `json:"feedback"`
}

// validateMarks checks every mark against its question before anything is
// written. Objective questions are scored automatically and cannot be graded.
func validateMarks(test *model.Test, marks []QuestionMark) (map[int]float64, error) {
	out := make(map[int]float64, len(marks))
	for _, m := range marks {
		if _, dup := out[m.QuestionNumber]; dup {
			return nil, util.Validationf("question %d graded twice", m.QuestionNumber)
		}
		q, err := questionFor(test, m.QuestionNumber)
		if err != nil {
			return nil, err
		}
		if q.Objective() {
			return nil, util.Validationf("question %d is scored automatically", m.QuestionNumber)
		}
		if m.MarksAwarded < 0 || m.MarksAwarded > q.Marks {
			return nil, util.Validationf("question %d: marks must be between 0 and %g", m.QuestionNumber, q.Marks)
		}
		out[m.QuestionNumber] = m.MarksAwarded
	}
	return out, nil
}

// requireAllMarked fails unless every manually graded question has a mark,
// including questions the student left blank.
func requireAllMarked(test *model.Test, marks map[int]float64) error {
	var missing []int
	for _, q := range gradedQuestions(test) {
		if q.Objective() {
			continue
		}
		if _, ok := marks[q.QuestionNumber]; !ok {
			missing = append(missing, q.QuestionNumber)
		}
	}
	if len(missing) > 0 {
		return util.Validationf("questions %v need marks before the attempt can be evaluated", missing)
	}
	return nil
}

// applyMarks returns a copy of answers with the given marks applied; graded
// questions the student left blank get an entry of their own.
func applyMarks(answers []model.Answer, marks map[int]float64) []model.Answer {
	out := make([]model.Answer, 0, len(answers)+len(marks))
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		if m, ok := marks[a.QuestionNumber]; ok {
			a.MarksAwarded = m
			a.Pending = false
		}
		seen[a.QuestionNumber] = true
		out = append(out, a)
	}
	for number, m := range marks {
		if !seen[number] {
			out = append(out, model.Answer{QuestionNumber: number, MarksAwarded: m})
		}
	}
	return NormalizeAnswers(out)
}

// Grade applies a teacher's marks to a submitted attempt and evaluates it.
// The first grading must mark every subjective and pdf question. Re-grading
// an evaluated attempt may change any subset; other marks are kept.
func (s *GradingService) Grade(ctx context.Context, grader Actor, attemptID string, input GradeInput) (*model.Attempt, error) {
	_, span := tracing.StartSpan(ctx, "attempt.grade", attribute.String("attempt.id", attemptID))
	defer span.End()

	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}
	if !grader.Owns(test.CreatorID) {
		return nil, util.ErrNotTestOwner
	}
	marks, err := validateMarks(test, input.Marks)
	if err != nil {
		return nil, err
	}

	var graded *model.Attempt
	err = s.Attempts.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := s.Attempts.WithTx(tx).FindByIDForUpdate(attemptID)
		if err != nil {
			return err
		}
		if !locked.Finished() {
			return util.ErrAttemptNotGradable
		}
		if locked.Status == model.AttemptSubmitted {
			if err := requireAllMarked(test, marks); err != nil {
				return err
			}
		}

		var delta repository.StatsDelta
		if locked.Status == model.AttemptEvaluated {
			delta = withOutcome(delta, locked.TotalScore, locked.Percentage, locked.Passed, -1)
		}

		now := s.now()
		expected := locked.Version
		answers := applyMarks(locked.AnswerList(), marks)
		total, pct, passed := Totals(test, answers)

		locked.SetAnswers(answers)
		locked.TotalScore = total
		locked.Percentage = pct
		locked.Passed = passed
		locked.Status = model.AttemptEvaluated
		locked.GradedAt = &now
		locked.GradedBy = &grader.ID
		locked.Feedback = input.Feedback

		ok, err := s.Attempts.WithTx(tx).SaveGrade(locked, expected)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrConcurrentUpdate
		}
		locked.Version = expected + 1

		delta = withOutcome(delta, total, pct, passed, 1)
		if err := s.Tests.WithTx(tx).ApplyStats(test.ID, delta); err != nil {
			return err
		}
		graded = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsGraded.Inc()
	logger.Log.Info("Attempt graded",
		zap.String("attemptId", graded.ID),
		zap.Uint("graderId", grader.ID),
		zap.Float64("totalScore", graded.TotalScore))
	return graded, nil
}

// withOutcome adds (sign 1) or removes (sign -1) one evaluated attempt's
// contribution to the running sums.
func withOutcome(d repository.StatsDelta, score, pct float64, passed *bool, sign int) repository.StatsDelta {
	d.Evaluated += sign
	d.Score += float64(sign) * score
	d.Percentage += float64(sign) * pct
	if passed != nil && *passed {
		d.Passed += sign
	}
	return d
}
