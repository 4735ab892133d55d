package repository

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"

	"gorm.io/gorm"
)

type SubjectRepository struct {
	DB *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

func (r *SubjectRepository) Create(subject *model.Subject) error {
	return r.DB.Create(subject).Error
}

func (r *SubjectRepository) FindByID(id string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.DB.First(&subject, "id = ?", id).Error; err != nil {
		return nil, util.NotFoundOr(err, util.ErrSubjectNotFound)
	}
	return &subject, nil
}

// IsOwner reports whether the teacher owns the subject.
func (r *SubjectRepository) IsOwner(teacherID uint, subjectID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Subject{}).
		Where("id = ? AND teacher_id = ?", subjectID, teacherID).
		Count(&count).Error
	return count > 0, err
}
