package service

import (
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/util"
	"fmt"
	"sort"
)

// wholePaper is the question number a pdf test without questions is graded on.
const wholePaper = 0

// Score is the outcome of scoring one answer set against a test.
type Score struct {
	Answers    []model.Answer
	TotalScore float64
	Percentage float64
	Passed     *bool
	Status     model.AttemptStatus
}

// NormalizeAnswers keeps one answer per question number; a later entry
// replaces an earlier one. The result is ordered by question number.
func NormalizeAnswers(answers []model.Answer) []model.Answer {
	byNumber := make(map[int]int, len(answers))
	out := make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		if i, ok := byNumber[a.QuestionNumber]; ok {
			out[i] = a
			continue
		}
		byNumber[a.QuestionNumber] = len(out)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionNumber < out[j].QuestionNumber
	})
	return out
}

// questionFor resolves the question an answer refers to. Pdf tests without
// questions accept a single whole-paper answer.
func questionFor(test *model.Test, number int) (model.Question, error) {
	if test.TotalQuestions == 0 && test.Type == model.TestTypePDF {
		if number != wholePaper {
			return model.Question{}, util.Validationf("this test takes a single whole-paper answer with questionNumber 0")
		}
		return model.Question{QuestionNumber: wholePaper, Kind: model.KindPDF, Marks: test.TotalMarks}, nil
	}
	q, ok := test.Question(number)
	if !ok {
		return model.Question{}, util.Validationf("question %d does not exist", number)
	}
	return q, nil
}

// gradedQuestions lists what a test is scored on: its questions, or the single
// whole-paper question of a pdf test without any.
func gradedQuestions(test *model.Test) []model.Question {
	if test.TotalQuestions == 0 && test.Type == model.TestTypePDF {
		q, _ := questionFor(test, wholePaper)
		return []model.Question{q}
	}
	return test.QuestionList()
}

// ValidateAnswers checks an answer set against the test without scoring it.
func ValidateAnswers(test *model.Test, answers []model.Answer) ([]model.Answer, error) {
	answers = NormalizeAnswers(answers)
	for _, a := range answers {
		q, err := questionFor(test, a.QuestionNumber)
		if err != nil {
			return nil, err
		}
		if q.Kind == model.KindMCQ && a.SelectedOption != nil && !a.SelectedOption.InRange(q.Options) {
			return nil, util.Validationf("question %d: option %s is out of range", q.QuestionNumber, a.SelectedOption.Letter())
		}
	}
	return answers, nil
}

// ScoreAnswers grades every objective answer and marks the rest pending.
// Unanswered questions contribute nothing.
func ScoreAnswers(test *model.Test, answers []model.Answer) (Score, error) {
	answers, err := ValidateAnswers(test, answers)
	if err != nil {
		return Score{}, err
	}

	scored := make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		q, _ := questionFor(test, a.QuestionNumber)
		a.IsCorrect = nil
		a.MarksAwarded = 0
		a.Pending = false

		switch q.Kind {
		case model.KindMCQ:
			correct := a.SelectedOption != nil && q.CorrectOption != nil && *a.SelectedOption == *q.CorrectOption
			a.IsCorrect = &correct
			if correct {
				a.MarksAwarded = q.Marks
			}
		case model.KindSubjective, model.KindPDF:
			a.Pending = true
		default:
			return Score{}, fmt.Errorf("question %d has unknown kind %q", q.QuestionNumber, q.Kind)
		}
		scored = append(scored, a)
	}

	total, pct, passed := Totals(test, scored)
	status := model.AttemptSubmitted
	if FullyObjective(test) {
		status = model.AttemptEvaluated
	}
	return Score{
		Answers:    scored,
		TotalScore: total,
		Percentage: pct,
		Passed:     passed,
		Status:     status,
	}, nil
}

// FullyObjective reports whether every question of the test is auto-gradable.
func FullyObjective(test *model.Test) bool {
	qs := test.QuestionList()
	if len(qs) == 0 {
		return false
	}
	for _, q := range qs {
		if !q.Objective() {
			return false
		}
	}
	return true
}

// Totals sums awarded marks. Percentage is kept at full precision and is 0
// when the test carries no marks; passed stays nil without passing marks.
func Totals(test *model.Test, answers []model.Answer) (float64, float64, *bool) {
	var total float64
	for _, a := range answers {
		if a.MarksAwarded > 0 {
			total += a.MarksAwarded
		}
	}

	var pct float64
	if test.TotalMarks > 0 {
		pct = total / test.TotalMarks * 100
	}

	var passed *bool
	if test.PassingMarks != nil {
		p := total >= *test.PassingMarks
		passed = &p
	}
	return total, pct, passed
}
