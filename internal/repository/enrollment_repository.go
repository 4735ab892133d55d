package repository

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) Create(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *EnrollmentRepository) FindByID(id string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("module_number asc")
	}).First(&enrollment, "id = ?", id).Error
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrEnrollmentNotFound)
	}
	return &enrollment, nil
}

// LockByID takes the enrollment row lock that serialises progress writes.
func (r *EnrollmentRepository) LockByID(id string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Clauses(clause.Locking{Strength: "UPDATE"}).First(&enrollment, "id = ?", id).Error
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrEnrollmentNotFound)
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) IsEnrolled(studentID uint, subjectID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID).
		Count(&count).Error
	return count > 0, err
}

// AddSectionView is an atomic set-add; a repeated view is a no-op.
func (r *EnrollmentRepository) AddSectionView(enrollmentID string, moduleNumber, sectionIndex int) error {
	view := model.SectionView{
		EnrollmentID: enrollmentID,
		ModuleNumber: moduleNumber,
		SectionIndex: sectionIndex,
	}
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&view).Error
}

func (r *EnrollmentRepository) SectionIndexes(enrollmentID string, moduleNumber int) ([]int, error) {
	var indexes []int
	err := r.DB.Model(&model.SectionView{}).
		Where("enrollment_id = ? AND module_number = ?", enrollmentID, moduleNumber).
		Order("section_index asc").
		Pluck("section_index", &indexes).Error
	return indexes, err
}

// AllSectionIndexes groups every recorded section view by module.
func (r *EnrollmentRepository) AllSectionIndexes(enrollmentID string) (map[int][]int, error) {
	var views []model.SectionView
	err := r.DB.Where("enrollment_id = ?", enrollmentID).
		Order("module_number asc, section_index asc").
		Find(&views).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int][]int)
	for _, v := range views {
		out[v.ModuleNumber] = append(out[v.ModuleNumber], v.SectionIndex)
	}
	return out, nil
}

// FindOrCreateModule lazily creates the module entry on its first event.
func (r *EnrollmentRepository) FindOrCreateModule(enrollmentID string, moduleNumber int) (*model.ModuleProgress, error) {
	entry := model.ModuleProgress{EnrollmentID: enrollmentID, ModuleNumber: moduleNumber}
	if err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
		return nil, err
	}
	var found model.ModuleProgress
	err := r.DB.Where("enrollment_id = ? AND module_number = ?", enrollmentID, moduleNumber).First(&found).Error
	return &found, err
}

func (r *EnrollmentRepository) SaveModule(entry *model.ModuleProgress) error {
	return r.DB.Model(&model.ModuleProgress{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
		"video_completed": entry.VideoCompleted,
		"notes_completed": entry.NotesCompleted,
		"progress":        entry.Progress,
	}).Error
}

func (r *EnrollmentRepository) ListModules(enrollmentID string) ([]model.ModuleProgress, error) {
	var modules []model.ModuleProgress
	err := r.DB.Where("enrollment_id = ?", enrollmentID).Order("module_number asc").Find(&modules).Error
	return modules, err
}

// SetCourseProgress writes the derived course progress; completed_at is only
// set when still empty, so completion is recorded exactly once.
func (r *EnrollmentRepository) SetCourseProgress(enrollmentID string, progress int, now time.Time) error {
	if err := r.DB.Model(&model.Enrollment{}).Where("id = ?", enrollmentID).
		Update("progress", progress).Error; err != nil {
		return err
	}
	if progress < 100 {
		return nil
	}
	return r.DB.Model(&model.Enrollment{}).
		Where("id = ? AND completed_at IS NULL", enrollmentID).
		Update("completed_at", now).Error
}
