package repository

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.DB.First(&attempt, "id = ?", id).Error; err != nil {
		return nil, util.NotFoundOr(err, util.ErrAttemptNotFound)
	}
	return &attempt, nil
}

// FindByIDForUpdate row-locks the attempt where the dialect supports it.
func (r *AttemptRepository) FindByIDForUpdate(id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Clauses(clause.Locking{Strength: "UPDATE"}).First(&attempt, "id = ?", id).Error
	if err != nil {
		return nil, util.NotFoundOr(err, util.ErrAttemptNotFound)
	}
	return &attempt, nil
}

// FindInProgress returns nil, nil when the pair has no running attempt.
func (r *AttemptRepository) FindInProgress(testID string, studentID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Where("test_id = ? AND student_id = ? AND status = ?", testID, studentID, model.AttemptInProgress).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) CountByStudentAndTest(testID string, studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) CountByTest(testID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).Where("test_id = ?", testID).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) ListByTest(testID string, status model.AttemptStatus, page, limit int) ([]model.Attempt, int64, error) {
	query := r.DB.Model(&model.Attempt{}).Where("test_id = ?", testID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("submitted_at asc, started_at asc").Find(&attempts).Error
	return attempts, total, err
}

func (r *AttemptRepository) ListByStudentAndTest(testID string, studentID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("test_id = ? AND student_id = ?", testID, studentID).
		Order("attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

// ListExpired returns in-progress attempts whose deadline is before cutoff,
// oldest first.
func (r *AttemptRepository) ListExpired(cutoff time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.AttemptInProgress, cutoff).
		Order("expires_at asc").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func outcomeColumns(a *model.Attempt) map[string]interface{} {
	return map[string]interface{}{
		"status":      a.Status,
		"answers":     a.Answers,
		"total_score": a.TotalScore,
		"percentage":  a.Percentage,
		"passed":      a.Passed,
		"graded_at":   a.GradedAt,
		"version":     gorm.Expr("version + 1"),
	}
}

// CompleteSubmit is the in-progress to submitted/evaluated compare-and-swap.
// It reports false when another writer already finished the attempt.
func (r *AttemptRepository) CompleteSubmit(a *model.Attempt, expectedVersion int) (bool, error) {
	cols := outcomeColumns(a)
	cols["active_slot"] = nil
	cols["submitted_at"] = a.SubmittedAt
	cols["time_spent"] = a.TimeSpent
	cols["client_time_spent"] = a.ClientTimeSpent
	cols["auto_submitted"] = a.AutoSubmitted

	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status = ? AND version = ?", a.ID, model.AttemptInProgress, expectedVersion).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveGrade writes a grading outcome guarded by the version read under lock.
func (r *AttemptRepository) SaveGrade(a *model.Attempt, expectedVersion int) (bool, error) {
	cols := outcomeColumns(a)
	cols["feedback"] = a.Feedback
	cols["graded_by"] = a.GradedBy

	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND version = ?", a.ID, expectedVersion).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecomputePassed re-derives passed on every finished attempt of a test from
// new passing marks and returns how many evaluated attempts now pass.
func (r *AttemptRepository) RecomputePassed(testID string, passingMarks float64) (int64, error) {
	err := r.DB.Model(&model.Attempt{}).
		Where("test_id = ? AND status IN ?", testID, []model.AttemptStatus{model.AttemptSubmitted, model.AttemptEvaluated}).
		Updates(map[string]interface{}{
			"passed":  gorm.Expr("total_score >= ?", passingMarks),
			"version": gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return 0, err
	}

	var passed int64
	err = r.DB.Model(&model.Attempt{}).
		Where("test_id = ? AND status = ? AND passed = ?", testID, model.AttemptEvaluated, true).
		Count(&passed).Error
	return passed, err
}
