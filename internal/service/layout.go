package service

import (
	"edu_assessment_backend/internal/model"
	"math/rand"
)

// BuildLayout derives the presentation order of an attempt from its seed, so
// every read of the same attempt shows the same order.
func BuildLayout(test *model.Test, seed int64) model.QuestionLayout {
	rng := rand.New(rand.NewSource(seed))
	qs := test.QuestionList()

	layout := model.QuestionLayout{Order: make([]int, len(qs))}
	for i, q := range qs {
		layout.Order[i] = q.QuestionNumber
	}
	if test.ShuffleQuestions {
		rng.Shuffle(len(layout.Order), func(i, j int) {
			layout.Order[i], layout.Order[j] = layout.Order[j], layout.Order[i]
		})
	}

	if !test.ShuffleOptions {
		return layout
	}
	layout.Options = make(map[int][]int)
	for _, q := range qs {
		if len(q.Options) < 2 {
			continue
		}
		perm := rng.Perm(len(q.Options))
		layout.Options[q.QuestionNumber] = perm
	}
	return layout
}

// OptionView is one option as shown to a student; Index is the canonical
// option index answers must refer to.
type OptionView struct {
	Index model.OptionRef `json:"index"`
	Text  string          `json:"text"`
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	QuestionNumber int                `json:"questionNumber"`
	Kind           model.QuestionKind `json:"kind"`
	Text           string             `json:"text"`
	Marks          float64            `json:"marks"`
	Options        []OptionView       `json:"options,omitempty"`
}

// ApplyLayout renders the test's questions in the attempt's order.
func ApplyLayout(test *model.Test, layout model.QuestionLayout) []QuestionView {
	views := make([]QuestionView, 0, len(layout.Order))
	for _, number := range layout.Order {
		q, ok := test.Question(number)
		if !ok {
			continue
		}
		v := QuestionView{
			QuestionNumber: q.QuestionNumber,
			Kind:           q.Kind,
			Text:           q.Text,
			Marks:          q.Marks,
		}
		order, shuffled := layout.Options[number]
		if !shuffled || len(order) != len(q.Options) {
			order = make([]int, len(q.Options))
			for i := range order {
				order[i] = i
			}
		}
		for _, idx := range order {
			v.Options = append(v.Options, OptionView{Index: model.OptionRef(idx), Text: q.Options[idx]})
		}
		views = append(views, v)
	}
	return views
}
