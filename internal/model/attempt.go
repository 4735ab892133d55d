package model

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptEvaluated  AttemptStatus = "evaluated"
)

// activeSlot marks the single in-progress attempt of a (test, student) pair.
// Finished attempts carry NULL, which the unique index ignores.
const activeSlot = 1

// Answer is one response inside an attempt, at most one per question number.
type Answer struct {
	QuestionNumber int        `json:"questionNumber"`
	SelectedOption *OptionRef `json:"selectedOption,omitempty"`
	Text           string     `json:"text,omitempty"`
	FileURL        string     `json:"fileUrl,omitempty"`
	IsCorrect      *bool      `json:"isCorrect"`
	MarksAwarded   float64    `json:"marksAwarded"`
	Pending        bool       `json:"pending"`
}

// QuestionLayout is the per-attempt presentation order: question numbers in
// display order and, per question, the canonical option indexes in display order.
type QuestionLayout struct {
	Order   []int         `json:"order"`
	Options map[int][]int `json:"options,omitempty"`
}

// swagger:model Attempt
type Attempt struct {
	UUIDBase

	TestID        string        `gorm:"size:36;not null;uniqueIndex:idx_attempt_number,priority:1;uniqueIndex:idx_attempt_active,priority:1" json:"testId"`
	StudentID     uint          `gorm:"not null;uniqueIndex:idx_attempt_number,priority:2;uniqueIndex:idx_attempt_active,priority:2" json:"studentId"`
	AttemptNumber int           `gorm:"not null;uniqueIndex:idx_attempt_number,priority:3" json:"attemptNumber"`
	ActiveSlot    *int          `gorm:"uniqueIndex:idx_attempt_active,priority:3" json:"-"`
	Status        AttemptStatus `gorm:"size:16;not null;index" json:"status"`
	Version       int           `gorm:"not null;default:1" json:"-"`

	Seed   int64                              `json:"-"`
	Layout datatypes.JSONType[QuestionLayout] `json:"-"`

	StartedAt       time.Time  `gorm:"not null;index" json:"startedAt"`
	ExpiresAt       *time.Time `gorm:"index" json:"expiresAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	GradedAt        *time.Time `json:"gradedAt,omitempty"`
	TimeSpent       int        `json:"timeSpent"`
	ClientTimeSpent int        `json:"clientTimeSpent"`
	AutoSubmitted   bool       `json:"autoSubmitted"`

	Answers    datatypes.JSONType[[]Answer] `json:"answers"`
	TotalScore float64                      `json:"totalScore"`
	Percentage float64                      `json:"percentage"`
	Passed     *bool                        `json:"passed"`
	Feedback   string                       `gorm:"type:text" json:"feedback,omitempty"`
	GradedBy   *uint                        `json:"gradedBy,omitempty"`

	ResultWithheld bool `gorm:"-" json:"resultWithheld,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// NewAttempt builds the in-progress attempt for a start. A zero duration
// leaves the attempt untimed.
func NewAttempt(testID string, studentID uint, number int, seed int64, now time.Time, duration time.Duration) *Attempt {
	slot := activeSlot
	var expires *time.Time
	if duration > 0 {
		t := now.Add(duration)
		expires = &t
	}
	return &Attempt{
		TestID:        testID,
		StudentID:     studentID,
		AttemptNumber: number,
		ActiveSlot:    &slot,
		Status:        AttemptInProgress,
		Version:       1,
		Seed:          seed,
		StartedAt:     now,
		ExpiresAt:     expires,
	}
}

func (a *Attempt) AnswerList() []Answer {
	return a.Answers.Data()
}

func (a *Attempt) SetAnswers(answers []Answer) {
	a.Answers = datatypes.NewJSONType(answers)
}

// WithholdResult clears the score, the pass flag and per-answer marks so the
// attempt can be shown before its result is released.
func (a *Attempt) WithholdResult() {
	answers := append([]Answer(nil), a.AnswerList()...)
	for i := range answers {
		answers[i].IsCorrect = nil
		answers[i].MarksAwarded = 0
	}
	a.SetAnswers(answers)
	a.TotalScore = 0
	a.Percentage = 0
	a.Passed = nil
	a.ResultWithheld = true
}

func (a *Attempt) Deadline(duration time.Duration) time.Time {
	return a.StartedAt.Add(duration)
}

// Finished reports whether answers can no longer change through submit.
func (a *Attempt) Finished() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptEvaluated
}
