package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/logger"
	"edu_assessment_backend/pkg/monitoring"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleWeight describes how one module's progress is built: its sections
// share SectionShare percent equally, and a watched video adds VideoWeight.
type ModuleWeight struct {
	Number       int
	Sections     int
	SectionShare float64
	VideoWeight  float64
}

// DefaultModuleWeights is the fixed five-module weighting table.
var DefaultModuleWeights = []ModuleWeight{
	{Number: 1, Sections: 8, SectionShare: 50, VideoWeight: 50},
	{Number: 2, Sections: 4, SectionShare: 100},
	{Number: 3, Sections: 3, SectionShare: 100},
	{Number: 4, Sections: 4, SectionShare: 100},
	{Number: 5, Sections: 5, SectionShare: 100},
}

// SectionWeight is the share of one section, rounded to 2 decimals.
func (w ModuleWeight) SectionWeight() decimal.Decimal {
	return decimal.NewFromFloat(w.SectionShare).Div(decimal.NewFromInt(int64(w.Sections))).Round(2)
}

// Progress derives the module percentage. A fully viewed module takes its
// whole share so rounding never leaves it short of 100.
func (w ModuleWeight) Progress(sectionsViewed int, videoCompleted bool) float64 {
	share := decimal.NewFromFloat(w.SectionShare)
	sections := w.SectionWeight().Mul(decimal.NewFromInt(int64(sectionsViewed)))
	if sectionsViewed >= w.Sections || sections.GreaterThan(share) {
		sections = share
	}
	total := sections
	if videoCompleted {
		total = total.Add(decimal.NewFromFloat(w.VideoWeight))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// CourseProgress is the rounded mean over the modules that have entries.
func CourseProgress(modules []model.ModuleProgress) int {
	if len(modules) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, m := range modules {
		sum = sum.Add(decimal.NewFromFloat(m.Progress))
	}
	return int(sum.Div(decimal.NewFromInt(int64(len(modules)))).Round(0).IntPart())
}

type ProgressService struct {
	Enrollments *repository.EnrollmentRepository
	Subjects    *repository.SubjectRepository
	Weights     map[int]ModuleWeight
	now         func() time.Time
}

func NewProgressService(enrollments *repository.EnrollmentRepository, subjects *repository.SubjectRepository) *ProgressService {
	weights := make(map[int]ModuleWeight, len(DefaultModuleWeights))
	for _, w := range DefaultModuleWeights {
		weights[w.Number] = w
	}
	return &ProgressService{
		Enrollments: enrollments,
		Subjects:    subjects,
		Weights:     weights,
		now:         time.Now,
	}
}

const (
	EventSectionViewed  = "section"
	EventVideoCompleted = "video"
)

// ProgressEvent is one completion event reported by content playback.
type ProgressEvent struct {
	ModuleNumber int    `json:"moduleNumber" binding:"required"`
	Event        string `json:"event" binding:"required"`
	SectionIndex *int   `json:"sectionIndex"`
}

type ProgressResult struct {
	Module         model.ModuleProgress `json:"module"`
	CourseProgress int                  `json:"courseProgress"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
}

func (s *ProgressService) Record(ctx context.Context, actor Actor, enrollmentID string, ev ProgressEvent) (*ProgressResult, error) {
	switch ev.Event {
	case EventSectionViewed:
		if ev.SectionIndex == nil {
			return nil, util.Validationf("sectionIndex is required for section events")
		}
		return s.RecordSectionView(ctx, actor, enrollmentID, ev.ModuleNumber, *ev.SectionIndex)
	case EventVideoCompleted:
		return s.RecordVideoCompleted(ctx, actor, enrollmentID, ev.ModuleNumber)
	}
	return nil, util.Validationf("event must be %q or %q", EventSectionViewed, EventVideoCompleted)
}

// RecordSectionView adds a section to the module's viewed set; repeats are
// no-ops apart from the recompute.
func (s *ProgressService) RecordSectionView(ctx context.Context, actor Actor, enrollmentID string, moduleNumber, sectionIndex int) (*ProgressResult, error) {
	w, ok := s.Weights[moduleNumber]
	if !ok {
		return nil, util.Validationf("module %d does not exist", moduleNumber)
	}
	if sectionIndex < 0 || sectionIndex >= w.Sections {
		return nil, util.Validationf("module %d has sections 0 to %d", moduleNumber, w.Sections-1)
	}
	return s.record(actor, enrollmentID, w, func(repo *repository.EnrollmentRepository, entry *model.ModuleProgress) error {
		monitoring.ProgressEvents.WithLabelValues(EventSectionViewed).Inc()
		return repo.AddSectionView(enrollmentID, moduleNumber, sectionIndex)
	})
}

// RecordVideoCompleted marks the module video watched. Only modules with a
// video weight have one.
func (s *ProgressService) RecordVideoCompleted(ctx context.Context, actor Actor, enrollmentID string, moduleNumber int) (*ProgressResult, error) {
	w, ok := s.Weights[moduleNumber]
	if !ok {
		return nil, util.Validationf("module %d does not exist", moduleNumber)
	}
	if w.VideoWeight == 0 {
		return nil, util.Validationf("module %d has no video", moduleNumber)
	}
	return s.record(actor, enrollmentID, w, func(_ *repository.EnrollmentRepository, entry *model.ModuleProgress) error {
		monitoring.ProgressEvents.WithLabelValues(EventVideoCompleted).Inc()
		entry.VideoCompleted = true
		return nil
	})
}

// record applies one event and recomputes module and course progress from
// the stored set, all under the enrollment row lock.
func (s *ProgressService) record(actor Actor, enrollmentID string, w ModuleWeight, apply func(*repository.EnrollmentRepository, *model.ModuleProgress) error) (*ProgressResult, error) {
	var result ProgressResult
	err := s.Enrollments.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Enrollments.WithTx(tx)
		enrollment, err := repo.LockByID(enrollmentID)
		if err != nil {
			return err
		}
		if enrollment.StudentID != actor.ID {
			return util.ErrNotEnrolled
		}

		entry, err := repo.FindOrCreateModule(enrollmentID, w.Number)
		if err != nil {
			return err
		}
		if err := apply(repo, entry); err != nil {
			return err
		}

		sections, err := repo.SectionIndexes(enrollmentID, w.Number)
		if err != nil {
			return err
		}
		if sections == nil {
			sections = []int{}
		}
		entry.SectionsCompleted = sections
		entry.NotesCompleted = len(sections) == w.Sections
		entry.Progress = w.Progress(len(sections), entry.VideoCompleted)
		if err := repo.SaveModule(entry); err != nil {
			return err
		}

		modules, err := repo.ListModules(enrollmentID)
		if err != nil {
			return err
		}
		course := CourseProgress(modules)
		if err := repo.SetCourseProgress(enrollmentID, course, s.now()); err != nil {
			return err
		}

		updated, err := repo.LockByID(enrollmentID)
		if err != nil {
			return err
		}
		result = ProgressResult{Module: *entry, CourseProgress: updated.Progress, CompletedAt: updated.CompletedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("Progress recorded",
		zap.String("enrollmentId", enrollmentID),
		zap.Int("module", w.Number),
		zap.Float64("moduleProgress", result.Module.Progress),
		zap.Int("courseProgress", result.CourseProgress))
	return &result, nil
}

// GetProgress returns the enrollment with every module's viewed sections.
// The enrolled student, the subject's teacher and admins may read it.
func (s *ProgressService) GetProgress(ctx context.Context, actor Actor, enrollmentID string) (*model.Enrollment, error) {
	enrollment, err := s.Enrollments.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != actor.ID && !actor.IsAdmin() {
		owns, err := s.Subjects.IsOwner(actor.ID, enrollment.SubjectID)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, util.ErrPermissionDenied
		}
	}

	sections, err := s.Enrollments.AllSectionIndexes(enrollmentID)
	if err != nil {
		return nil, err
	}
	for i := range enrollment.Modules {
		m := &enrollment.Modules[i]
		m.SectionsCompleted = sections[m.ModuleNumber]
		if m.SectionsCompleted == nil {
			m.SectionsCompleted = []int{}
		}
	}
	return enrollment, nil
}

// Enroll registers a student on a subject. Enrollment normally comes from
// payment or unlock codes, which live elsewhere.
func (s *ProgressService) Enroll(ctx context.Context, studentID uint, subjectID string) (*model.Enrollment, error) {
	if studentID == 0 {
		return nil, util.Validationf("studentId is required")
	}
	if _, err := s.Subjects.FindByID(subjectID); err != nil {
		return nil, err
	}
	enrollment := &model.Enrollment{StudentID: studentID, SubjectID: subjectID}
	if err := s.Enrollments.Create(enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyEnrolled
		}
		return nil, err
	}
	enrollment.Modules = []model.ModuleProgress{}
	return enrollment, nil
}

// CreateSubject registers a subject and its owning teacher.
func (s *ProgressService) CreateSubject(ctx context.Context, teacherID uint, title string) (*model.Subject, error) {
	if teacherID == 0 {
		return nil, util.Validationf("teacherId is required")
	}
	subject := &model.Subject{TeacherID: teacherID, Title: title}
	if err := s.Subjects.Create(subject); err != nil {
		return nil, err
	}
	return subject, nil
}
