package repository

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

// WithTx returns a repository bound to tx.
func (r *TestRepository) WithTx(tx *gorm.DB) *TestRepository {
	return &TestRepository{DB: tx}
}

func (r *TestRepository) Create(test *model.Test) error {
	return r.DB.Create(test).Error
}

func (r *TestRepository) FindByID(id string) (*model.Test, error) {
	var test model.Test
	if err := r.DB.First(&test, "id = ?", id).Error; err != nil {
		return nil, util.NotFoundOr(err, util.ErrTestNotFound)
	}
	return &test, nil
}

func (r *TestRepository) ListByCreator(creatorID uint, status string, page, limit int) ([]model.Test, int64, error) {
	query := r.DB.Model(&model.Test{}).Where("creator_id = ?", creatorID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []model.Test
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Order("created_at desc").Find(&tests).Error
	return tests, total, err
}

// UpdateFields writes metadata columns only; aggregates are never touched here.
func (r *TestRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.DB.Model(&model.Test{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStructure writes fields that are frozen once attempts exist. The
// attempt check is part of the UPDATE so a concurrent start cannot slip in
// between check and write. It reports false when no row matched, which the
// caller must confirm since MySQL does not count unchanged rows.
func (r *TestRepository) UpdateStructure(id string, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.Test{}).
		Where("id = ? AND total_attempts = 0", id).
		Where("NOT EXISTS (SELECT 1 FROM attempts WHERE attempts.test_id = ?)", id).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// TransitionStatus moves a test between statuses with a compare-and-swap on
// the current status.
func (r *TestRepository) TransitionStatus(id string, from []model.TestStatus, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.Test{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// StatsDelta is an exact change to a test's running sums.
type StatsDelta struct {
	Attempts   int
	Evaluated  int
	Passed     int
	Score      float64
	Percentage float64
}

func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// ApplyStats adds delta to the running sums in a single UPDATE so concurrent
// writers never lose increments.
func (r *TestRepository) ApplyStats(testID string, d StatsDelta) error {
	if d.IsZero() {
		return nil
	}
	return r.DB.Model(&model.Test{}).Where("id = ?", testID).Updates(map[string]interface{}{
		"total_attempts":  gorm.Expr("total_attempts + ?", d.Attempts),
		"evaluated_count": gorm.Expr("evaluated_count + ?", d.Evaluated),
		"passed_count":    gorm.Expr("passed_count + ?", d.Passed),
		"sum_score":       gorm.Expr("sum_score + ?", d.Score),
		"sum_percentage":  gorm.Expr("sum_percentage + ?", d.Percentage),
	}).Error
}
