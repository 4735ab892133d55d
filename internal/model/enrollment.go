package model

import "time"

// swagger:model Enrollment
type Enrollment struct {
	UUIDBase
	StudentID   uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_subject,priority:1" json:"studentId"`
	SubjectID   string           `gorm:"size:36;not null;uniqueIndex:idx_enrollment_student_subject,priority:2" json:"subjectId"`
	Progress    int              `gorm:"not null;default:0" json:"progress"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Modules     []ModuleProgress `gorm:"foreignKey:EnrollmentID" json:"modules"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// ModuleProgress is the derived per-module completion state. Progress is
// always recomputed from the section views and the video flag.
// swagger:model ModuleProgress
type ModuleProgress struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EnrollmentID      string    `gorm:"size:36;not null;uniqueIndex:idx_module_progress,priority:1" json:"-"`
	ModuleNumber      int       `gorm:"not null;uniqueIndex:idx_module_progress,priority:2" json:"moduleNumber"`
	VideoCompleted    bool      `gorm:"not null;default:false" json:"videoCompleted"`
	NotesCompleted    bool      `gorm:"not null;default:false" json:"notesCompleted"`
	Progress          float64   `gorm:"not null;default:0" json:"progress"`
	SectionsCompleted []int     `gorm:"-" json:"sectionsCompleted"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}

// SectionView is one member of a module's sectionsCompleted set; the unique
// index makes the insert an atomic set-add.
type SectionView struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	EnrollmentID string `gorm:"size:36;not null;uniqueIndex:idx_section_view,priority:1"`
	ModuleNumber int    `gorm:"not null;uniqueIndex:idx_section_view,priority:2"`
	SectionIndex int    `gorm:"not null;uniqueIndex:idx_section_view,priority:3"`
	CreatedAt    time.Time
}

func (SectionView) TableName() string {
	return "module_section_views"
}
