package model

// Subject is the teacher-owned content unit tests and enrollments hang off.
// It is authored elsewhere; here it only answers ownership questions.
// swagger:model Subject
type Subject struct {
	UUIDBase
	TeacherID uint   `gorm:"index;not null" json:"teacherId"`
	Title     string `gorm:"size:255" json:"title"`
}

func (Subject) TableName() string {
	return "subjects"
}
