package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/logger"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestService is the test catalog.
type TestService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	Subjects *repository.SubjectRepository
	now      func() time.Time
}

func NewTestService(tests *repository.TestRepository, attempts *repository.AttemptRepository, subjects *repository.SubjectRepository) *TestService {
	return &TestService{Tests: tests, Attempts: attempts, Subjects: subjects, now: time.Now}
}

type QuestionInput struct {
	QuestionNumber int                `json:"questionNumber"`
	Kind           model.QuestionKind `json:"kind"`
	Text           string             `json:"text"`
	Options        []string           `json:"options"`
	CorrectOption  *model.OptionRef   `json:"correctOption"`
	Marks          float64            `json:"marks"`
	Explanation    string             `json:"explanation"`
}

type CreateTestReq struct {
	SubjectID              string          `json:"subjectId" binding:"required"`
	Title                  string          `json:"title" binding:"required"`
	Description            string          `json:"description"`
	Instructions           string          `json:"instructions"`
	Type                   model.TestType  `json:"type" binding:"required"`
	Questions              []QuestionInput `json:"questions"`
	TotalMarks             *float64        `json:"totalMarks"`
	PassingMarks           *float64        `json:"passingMarks"`
	Duration               int             `json:"duration"`
	AllowMultipleAttempts  bool            `json:"allowMultipleAttempts"`
	MaxAttempts            int             `json:"maxAttempts"`
	ShuffleQuestions       bool            `json:"shuffleQuestions"`
	ShuffleOptions         bool            `json:"shuffleOptions"`
	ShowResultsImmediately bool            `json:"showResultsImmediately"`
	ShowCorrectAnswers     bool            `json:"showCorrectAnswers"`
}

// UpdateTestReq is a patch; nil fields are left alone. Questions, Duration
// and TotalMarks are structural and frozen once the test has attempts.
type UpdateTestReq struct {
	Title                  *string          `json:"title"`
	Description            *string          `json:"description"`
	Instructions           *string          `json:"instructions"`
	PassingMarks           *float64         `json:"passingMarks"`
	AllowMultipleAttempts  *bool            `json:"allowMultipleAttempts"`
	MaxAttempts            *int             `json:"maxAttempts"`
	ShuffleQuestions       *bool            `json:"shuffleQuestions"`
	ShuffleOptions         *bool            `json:"shuffleOptions"`
	ShowResultsImmediately *bool            `json:"showResultsImmediately"`
	ShowCorrectAnswers     *bool            `json:"showCorrectAnswers"`
	Questions              *[]QuestionInput `json:"questions"`
	Duration               *int             `json:"duration"`
	TotalMarks             *float64         `json:"totalMarks"`
}

func (r UpdateTestReq) structural() bool {
	return r.Questions != nil || r.Duration != nil || r.TotalMarks != nil
}

// normalizeQuestions validates numbering and kinds and returns the questions
// ordered by number.
func normalizeQuestions(testType model.TestType, inputs []QuestionInput) ([]model.Question, error) {
	if len(inputs) == 0 {
		return []model.Question{}, nil
	}

	numbered := inputs[0].QuestionNumber != 0
	qs := make([]model.Question, len(inputs))
	for i, in := range inputs {
		if numbered != (in.QuestionNumber != 0) {
			return nil, util.Validationf("either number every question or none")
		}
		number := in.QuestionNumber
		if !numbered {
			number = i + 1
		}
		if strings.TrimSpace(in.Text) == "" {
			return nil, util.Validationf("question %d: text is required", number)
		}
		if in.Marks <= 0 {
			return nil, util.Validationf("question %d: marks must be positive", number)
		}

		kind, err := questionKind(testType, in)
		if err != nil {
			return nil, util.Validationf("question %d: %s", number, err.Error())
		}
		q := model.Question{
			QuestionNumber: number,
			Kind:           kind,
			Text:           in.Text,
			Marks:          in.Marks,
			Explanation:    in.Explanation,
		}
		if kind == model.KindMCQ {
			if len(in.Options) < 2 {
				return nil, util.Validationf("question %d: at least two options are required", number)
			}
			if in.CorrectOption == nil || !in.CorrectOption.InRange(in.Options) {
				return nil, util.Validationf("question %d: correctOption must index into options", number)
			}
			q.Options = in.Options
			q.CorrectOption = in.CorrectOption
		}
		qs[i] = q
	}

	sort.SliceStable(qs, func(i, j int) bool { return qs[i].QuestionNumber < qs[j].QuestionNumber })
	for i, q := range qs {
		if q.QuestionNumber != i+1 {
			return nil, util.Validationf("questions must be numbered densely from 1, got %d at position %d", q.QuestionNumber, i+1)
		}
	}
	return qs, nil
}

func questionKind(testType model.TestType, in QuestionInput) (model.QuestionKind, error) {
	switch testType {
	case model.TestTypeMCQ:
		if in.Kind != "" && in.Kind != model.KindMCQ {
			return "", util.Validationf("mcq tests only take mcq questions")
		}
		return model.KindMCQ, nil
	case model.TestTypePDF:
		if in.Kind != "" && in.Kind != model.KindPDF {
			return "", util.Validationf("pdf tests only take pdf questions")
		}
		return model.KindPDF, nil
	case model.TestTypeMixed:
		switch in.Kind {
		case model.KindMCQ, model.KindSubjective, model.KindPDF:
			return in.Kind, nil
		case "":
			if len(in.Options) > 0 {
				return model.KindMCQ, nil
			}
			return model.KindSubjective, nil
		}
	}
	return "", util.Validationf("unknown question kind %q", in.Kind)
}

// resolveMarks derives totalMarks from the questions and checks passingMarks.
func resolveMarks(qs []model.Question, totalMarks, passingMarks *float64) (float64, error) {
	var total float64
	if len(qs) > 0 {
		for _, q := range qs {
			total += q.Marks
		}
		if totalMarks != nil && *totalMarks != total {
			return 0, util.Validationf("totalMarks %g does not match the question marks %g", *totalMarks, total)
		}
	} else if totalMarks != nil {
		total = *totalMarks
	}
	if total < 0 {
		return 0, util.Validationf("totalMarks must not be negative")
	}
	if passingMarks != nil {
		if *passingMarks < 0 {
			return 0, util.Validationf("passingMarks must not be negative")
		}
		if *passingMarks > total {
			return 0, util.Validationf("passingMarks %g exceeds totalMarks %g", *passingMarks, total)
		}
	}
	return total, nil
}

func resolveMaxAttempts(n int) (int, error) {
	if n < 0 {
		return 0, util.Validationf("maxAttempts must be at least 1")
	}
	if n == 0 {
		return 1, nil
	}
	return n, nil
}

func (s *TestService) CreateTest(ctx context.Context, actor Actor, req CreateTestReq) (*model.Test, error) {
	if !req.Type.Valid() {
		return nil, util.Validationf("type must be one of mcq, pdf, mixed")
	}
	if req.Duration < 0 {
		return nil, util.Validationf("duration must not be negative")
	}
	if !actor.IsAdmin() {
		owns, err := s.Subjects.IsOwner(actor.ID, req.SubjectID)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, util.ErrNotSubjectOwner
		}
	}

	qs, err := normalizeQuestions(req.Type, req.Questions)
	if err != nil {
		return nil, err
	}
	total, err := resolveMarks(qs, req.TotalMarks, req.PassingMarks)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := resolveMaxAttempts(req.MaxAttempts)
	if err != nil {
		return nil, err
	}

	test := &model.Test{
		CreatorID:              actor.ID,
		SubjectID:              req.SubjectID,
		Title:                  req.Title,
		Description:            req.Description,
		Instructions:           req.Instructions,
		Type:                   req.Type,
		Status:                 model.TestDraft,
		IsActive:               true,
		TotalMarks:             total,
		PassingMarks:           req.PassingMarks,
		Duration:               req.Duration,
		AllowMultipleAttempts:  req.AllowMultipleAttempts,
		MaxAttempts:            maxAttempts,
		ShuffleQuestions:       req.ShuffleQuestions,
		ShuffleOptions:         req.ShuffleOptions,
		ShowResultsImmediately: req.ShowResultsImmediately,
		ShowCorrectAnswers:     req.ShowCorrectAnswers,
	}
	test.SetQuestions(qs)

	if err := s.Tests.Create(test); err != nil {
		return nil, err
	}
	logger.Log.Info("Test created",
		zap.String("testId", test.ID),
		zap.Uint("creatorId", actor.ID),
		zap.Int("questions", test.TotalQuestions))
	return test, nil
}

func (s *TestService) ownedTest(actor Actor, id string) (*model.Test, error) {
	test, err := s.Tests.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(test.CreatorID) {
		return nil, util.ErrNotTestOwner
	}
	return test, nil
}

func (s *TestService) GetTest(ctx context.Context, actor Actor, id string) (*model.Test, error) {
	return s.ownedTest(actor, id)
}

func (s *TestService) ListTests(ctx context.Context, actor Actor, status string, page, limit int) ([]model.Test, int64, error) {
	if page < 1 {
		page = 1
	}
	return s.Tests.ListByCreator(actor.ID, status, page, limit)
}

// PublishTest moves a draft to active.
func (s *TestService) PublishTest(ctx context.Context, actor Actor, id string) (*model.Test, error) {
	test, err := s.ownedTest(actor, id)
	if err != nil {
		return nil, err
	}
	if err := publishable(test); err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.Tests.TransitionStatus(id, []model.TestStatus{model.TestDraft}, map[string]interface{}{
		"status":       model.TestActive,
		"is_active":    true,
		"published_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost to a concurrent transition; report what it became
		if current, err := s.Tests.FindByID(id); err == nil {
			if err := publishable(current); err != nil {
				return nil, err
			}
		}
		return nil, util.ErrTestAlreadyActive
	}

	logger.Log.Info("Test published", zap.String("testId", id))
	return s.Tests.FindByID(id)
}

func publishable(test *model.Test) error {
	switch test.Status {
	case model.TestActive:
		return util.ErrTestAlreadyActive
	case model.TestArchived:
		return util.ErrTestArchived
	}
	if test.Type != model.TestTypePDF && test.TotalQuestions == 0 {
		return util.ErrTestHasNoQuestions
	}
	return nil
}

func (s *TestService) hasAttempts(test *model.Test) (bool, error) {
	if test.TotalAttempts > 0 {
		return true, nil
	}
	n, err := s.Attempts.CountByTest(test.ID)
	return n > 0, err
}

func (s *TestService) UpdateTest(ctx context.Context, actor Actor, id string, req UpdateTestReq) (*model.Test, error) {
	test, err := s.ownedTest(actor, id)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestArchived {
		return nil, util.ErrTestArchived
	}

	structure := map[string]interface{}{}
	if req.structural() {
		frozen, err := s.hasAttempts(test)
		if err != nil {
			return nil, err
		}
		if frozen {
			return nil, util.ErrTestStructureFrozen
		}
	}

	qs := test.QuestionList()
	if req.Questions != nil {
		if qs, err = normalizeQuestions(test.Type, *req.Questions); err != nil {
			return nil, err
		}
		if test.Status == model.TestActive && test.Type != model.TestTypePDF && len(qs) == 0 {
			return nil, util.ErrTestHasNoQuestions
		}
		structure["questions"] = datatypes.NewJSONType(qs)
		structure["total_questions"] = len(qs)
	}
	if req.Duration != nil {
		if *req.Duration < 0 {
			return nil, util.Validationf("duration must not be negative")
		}
		structure["duration"] = *req.Duration
	}

	totalMarks := req.TotalMarks
	if totalMarks == nil && req.Questions == nil {
		totalMarks = &test.TotalMarks
	}
	passing := test.PassingMarks
	if req.PassingMarks != nil {
		passing = req.PassingMarks
	}
	total, err := resolveMarks(qs, totalMarks, passing)
	if err != nil {
		return nil, err
	}
	if req.Questions != nil || req.TotalMarks != nil {
		structure["total_marks"] = total
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, util.Validationf("title must not be empty")
		}
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Instructions != nil {
		fields["instructions"] = *req.Instructions
	}
	if req.PassingMarks != nil {
		fields["passing_marks"] = *req.PassingMarks
	}
	if req.AllowMultipleAttempts != nil {
		fields["allow_multiple_attempts"] = *req.AllowMultipleAttempts
	}
	if req.MaxAttempts != nil {
		n, err := resolveMaxAttempts(*req.MaxAttempts)
		if err != nil {
			return nil, err
		}
		fields["max_attempts"] = n
	}
	if req.ShuffleQuestions != nil {
		fields["shuffle_questions"] = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		fields["shuffle_options"] = *req.ShuffleOptions
	}
	if req.ShowResultsImmediately != nil {
		fields["show_results_immediately"] = *req.ShowResultsImmediately
	}
	if req.ShowCorrectAnswers != nil {
		fields["show_correct_answers"] = *req.ShowCorrectAnswers
	}

	err = s.Tests.DB.Transaction(func(tx *gorm.DB) error {
		tests := s.Tests.WithTx(tx)
		if len(structure) > 0 {
			ok, err := tests.UpdateStructure(id, structure)
			if err != nil {
				return err
			}
			if !ok {
				n, err := s.Attempts.WithTx(tx).CountByTest(id)
				if err != nil {
					return err
				}
				if n > 0 {
					return util.ErrTestStructureFrozen
				}
			}
		}
		if req.PassingMarks != nil {
			passed, err := s.Attempts.WithTx(tx).RecomputePassed(id, *req.PassingMarks)
			if err != nil {
				return err
			}
			fields["passed_count"] = passed
		}
		if len(fields) > 0 {
			return tests.UpdateFields(id, fields)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Tests.FindByID(id)
}

// ArchiveTest soft-deletes a test. Attempts and their history are kept; an
// already archived test is returned unchanged.
func (s *TestService) ArchiveTest(ctx context.Context, actor Actor, id string) (*model.Test, error) {
	test, err := s.ownedTest(actor, id)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestArchived {
		return test, nil
	}
	_, err = s.Tests.TransitionStatus(id, []model.TestStatus{model.TestDraft, model.TestActive}, map[string]interface{}{
		"status":      model.TestArchived,
		"is_active":   false,
		"archived_at": s.now(),
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Test archived", zap.String("testId", id))
	return s.Tests.FindByID(id)
}

func (s *TestService) Stats(ctx context.Context, actor Actor, id string) (*model.TestStats, error) {
	test, err := s.ownedTest(actor, id)
	if err != nil {
		return nil, err
	}
	stats := test.Stats()
	return &stats, nil
}

// ListAttempts is the teacher's view of a test's attempts; filter by
// "submitted" for the grading queue.
func (s *TestService) ListAttempts(ctx context.Context, actor Actor, id string, status model.AttemptStatus, page, limit int) ([]model.Attempt, int64, error) {
	if _, err := s.ownedTest(actor, id); err != nil {
		return nil, 0, err
	}
	switch status {
	case "", model.AttemptInProgress, model.AttemptSubmitted, model.AttemptEvaluated:
	default:
		return nil, 0, util.Validationf("unknown attempt status %q", status)
	}
	if page < 1 {
		page = 1
	}
	return s.Attempts.ListByTest(id, status, page, limit)
}
