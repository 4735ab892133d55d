package model

import (
	"time"

	"gorm.io/datatypes"
)

type TestType string

const (
	TestTypeMCQ   TestType = "mcq"
	TestTypePDF   TestType = "pdf"
	TestTypeMixed TestType = "mixed"
)

func (t TestType) Valid() bool {
	switch t {
	case TestTypeMCQ, TestTypePDF, TestTypeMixed:
		return true
	}
	return false
}

type TestStatus string

const (
	TestDraft    TestStatus = "draft"
	TestActive   TestStatus = "active"
	TestArchived TestStatus = "archived"
)

// QuestionKind tags the variant a question belongs to. Scoring switches on it
// exhaustively.
type QuestionKind string

const (
	KindMCQ        QuestionKind = "mcq"
	KindSubjective QuestionKind = "subjective"
	KindPDF        QuestionKind = "pdf"
)

// Question is embedded in its Test; QuestionNumber is 1-based and dense.
type Question struct {
	QuestionNumber int          `json:"questionNumber"`
	Kind           QuestionKind `json:"kind"`
	Text           string       `json:"text"`
	Options        []string     `json:"options,omitempty"`
	CorrectOption  *OptionRef   `json:"correctOption,omitempty"`
	Marks          float64      `json:"marks"`
	Explanation    string       `json:"explanation,omitempty"`
}

// Objective reports whether the question is auto-gradable.
func (q Question) Objective() bool {
	return q.Kind == KindMCQ
}

// swagger:model Test
type Test struct {
	UUIDBase

	CreatorID    uint       `gorm:"index;not null" json:"creatorId"`
	SubjectID    string     `gorm:"size:36;index" json:"subjectId"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Instructions string     `gorm:"type:text" json:"instructions"`
	Type         TestType   `gorm:"size:16;not null" json:"type"`
	Status       TestStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`

	Questions      datatypes.JSONType[[]Question] `json:"questions"`
	TotalQuestions int                            `json:"totalQuestions"`
	TotalMarks     float64                        `json:"totalMarks"`
	PassingMarks   *float64                       `json:"passingMarks,omitempty"`
	Duration       int                            `json:"duration"` // minutes, 0 = untimed

	AllowMultipleAttempts  bool `json:"allowMultipleAttempts"`
	MaxAttempts            int  `gorm:"not null;default:1" json:"maxAttempts"`
	ShuffleQuestions       bool `json:"shuffleQuestions"`
	ShuffleOptions         bool `json:"shuffleOptions"`
	ShowResultsImmediately bool `json:"showResultsImmediately"`
	ShowCorrectAnswers     bool `json:"showCorrectAnswers"`

	// running aggregates, kept as exact sums and divided on read
	TotalAttempts  int     `gorm:"not null;default:0" json:"totalAttempts"`
	EvaluatedCount int     `gorm:"not null;default:0" json:"-"`
	PassedCount    int     `gorm:"not null;default:0" json:"-"`
	SumScore       float64 `gorm:"not null;default:0" json:"-"`
	SumPercentage  float64 `gorm:"not null;default:0" json:"-"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) QuestionList() []Question {
	return t.Questions.Data()
}

func (t *Test) SetQuestions(qs []Question) {
	t.Questions = datatypes.NewJSONType(qs)
	t.TotalQuestions = len(qs)
}

// Question looks a question up by its number.
func (t *Test) Question(number int) (Question, bool) {
	for _, q := range t.QuestionList() {
		if q.QuestionNumber == number {
			return q, true
		}
	}
	return Question{}, false
}

// AttemptLimit is the number of attempts a student may start in total.
func (t *Test) AttemptLimit() int {
	if !t.AllowMultipleAttempts {
		return 1
	}
	if t.MaxAttempts < 1 {
		return 1
	}
	return t.MaxAttempts
}

func (t *Test) DurationLimit() time.Duration {
	return time.Duration(t.Duration) * time.Minute
}

// TestStats is the read-side view of a test's aggregates.
type TestStats struct {
	TestID         string   `json:"testId"`
	TotalAttempts  int      `json:"totalAttempts"`
	EvaluatedCount int      `json:"evaluatedCount"`
	PendingCount   int      `json:"pendingCount"`
	AvgScore       *float64 `json:"avgScore"`
	AvgPercentage  *float64 `json:"avgPercentage"`
	PassRate       *float64 `json:"passRate"`
}

// Stats divides the running sums. Pending attempts count toward TotalAttempts
// only; averages cover evaluated attempts. PassedCount is rebuilt whenever
// passing marks change, so the pass rate covers attempts evaluated before.
func (t *Test) Stats() TestStats {
	s := TestStats{
		TestID:         t.ID,
		TotalAttempts:  t.TotalAttempts,
		EvaluatedCount: t.EvaluatedCount,
		PendingCount:   t.TotalAttempts - t.EvaluatedCount,
	}
	if t.EvaluatedCount == 0 {
		return s
	}
	n := float64(t.EvaluatedCount)
	avg := t.SumScore / n
	avgPct := t.SumPercentage / n
	s.AvgScore = &avg
	s.AvgPercentage = &avgPct
	if t.PassingMarks != nil {
		rate := float64(t.PassedCount) / n
		s.PassRate = &rate
	}
	return s
}
