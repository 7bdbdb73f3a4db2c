package session

import (
	"encoding/json"
	"testing"

	"quizdesk/internal/question"
)

func TestEvaluateSingle(t *testing.T) {
	q := question.Single{
		Base:          question.Base{ID: "q1", Prompt: "Pick"},
		Options:       []string{"A", "B"},
		CorrectOption: "B",
	}

	tests := []struct {
		name     string
		payload  string
		correct  bool
		answered bool
	}{
		{name: "exact match", payload: `"B"`, correct: true, answered: true},
		{name: "case sensitive", payload: `"b"`, correct: false, answered: true},
		{name: "wrong option", payload: `"A"`, correct: false, answered: true},
		{name: "empty string unanswered", payload: `""`, correct: false, answered: false},
		{name: "null unanswered", payload: `null`, correct: false, answered: false},
		{name: "missing payload", payload: ``, correct: false, answered: false},
		{name: "wrong shape grades wrong", payload: `["B"]`, correct: false, answered: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(q, payload(tc.payload))
			if got.Correct != tc.correct || got.Answered != tc.answered {
				t.Fatalf("expected correct=%v answered=%v, got correct=%v answered=%v",
					tc.correct, tc.answered, got.Correct, got.Answered)
			}
		})
	}
}

func TestEvaluateMultiple(t *testing.T) {
	q := question.Multiple{
		Base:           question.Base{ID: "q1", Prompt: "Pick many"},
		Options:        []string{"A", "B", "C", "D"},
		CorrectOptions: []string{"A", "D"},
	}

	tests := []struct {
		name     string
		payload  string
		correct  bool
		answered bool
	}{
		{name: "exact set", payload: `["A","D"]`, correct: true, answered: true},
		{name: "order independent", payload: `["D","A"]`, correct: true, answered: true},
		{name: "duplicates collapse", payload: `["A","A","D"]`, correct: true, answered: true},
		{name: "missing one", payload: `["A"]`, correct: false, answered: true},
		{name: "extra one", payload: `["A","D","B"]`, correct: false, answered: true},
		{name: "empty unanswered", payload: `[]`, correct: false, answered: false},
		{name: "missing payload", payload: ``, correct: false, answered: false},
		{name: "wrong shape", payload: `"A"`, correct: false, answered: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(q, payload(tc.payload))
			if got.Correct != tc.correct || got.Answered != tc.answered {
				t.Fatalf("expected correct=%v answered=%v, got correct=%v answered=%v",
					tc.correct, tc.answered, got.Correct, got.Answered)
			}
		})
	}
}

func TestEvaluateText(t *testing.T) {
	q := question.Text{
		Base:           question.Base{ID: "q1", Prompt: "Capital of France"},
		CorrectAnswers: []string{"Paris", " paris city "},
	}

	tests := []struct {
		name     string
		payload  string
		correct  bool
		answered bool
	}{
		{name: "exact", payload: `"Paris"`, correct: true, answered: true},
		{name: "lowercase", payload: `"paris"`, correct: true, answered: true},
		{name: "surrounding whitespace", payload: `" Paris "`, correct: true, answered: true},
		{name: "matches any of many", payload: `"PARIS CITY"`, correct: true, answered: true},
		{name: "wrong answer", payload: `"Lyon"`, correct: false, answered: true},
		{name: "blank unanswered", payload: `"   "`, correct: false, answered: false},
		{name: "missing payload", payload: ``, correct: false, answered: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(q, payload(tc.payload))
			if got.Correct != tc.correct || got.Answered != tc.answered {
				t.Fatalf("expected correct=%v answered=%v, got correct=%v answered=%v",
					tc.correct, tc.answered, got.Correct, got.Answered)
			}
		})
	}
}

func TestEvaluateTextNoUsableAnswers(t *testing.T) {
	q := question.Text{
		Base:           question.Base{ID: "q1", Prompt: "Unfinished"},
		CorrectAnswers: []string{"", "   "},
	}
	if got := Evaluate(q, payload(`""`)); got.Correct {
		t.Fatalf("a question with no usable correct answers can never be correct")
	}
	if got := Evaluate(q, payload(`"anything"`)); got.Correct {
		t.Fatalf("a question with no usable correct answers can never be correct")
	}
}

func TestEvaluateDrag(t *testing.T) {
	q := question.Drag{
		Base:    question.Base{ID: "q1", Prompt: "Sort"},
		Targets: []question.LabeledItem{{ID: "g1"}, {ID: "g2"}},
		Items:   []question.LabeledItem{{ID: "i1"}, {ID: "i2"}, {ID: "i3"}},
		CorrectMapping: map[string]string{
			"i1": "g1",
			"i2": "g2",
			// i3 belongs to no target.
		},
	}

	tests := []struct {
		name     string
		payload  string
		correct  bool
		answered bool
	}{
		{name: "all placed correctly", payload: `{"i1":"g1","i2":"g2"}`, correct: true, answered: true},
		{name: "null means unassigned", payload: `{"i1":"g1","i2":"g2","i3":null}`, correct: true, answered: true},
		{name: "empty string means unassigned", payload: `{"i1":"g1","i2":"g2","i3":""}`, correct: true, answered: true},
		{name: "wrong target", payload: `{"i1":"g2","i2":"g2"}`, correct: false, answered: true},
		{name: "item wrongly placed instead of unassigned", payload: `{"i1":"g1","i2":"g2","i3":"g1"}`, correct: false, answered: true},
		{name: "item wrongly unassigned", payload: `{"i1":"g1"}`, correct: false, answered: true},
		{name: "missing payload", payload: ``, correct: false, answered: false},
		{name: "wrong shape", payload: `["i1"]`, correct: false, answered: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(q, payload(tc.payload))
			if got.Correct != tc.correct || got.Answered != tc.answered {
				t.Fatalf("expected correct=%v answered=%v, got correct=%v answered=%v",
					tc.correct, tc.answered, got.Correct, got.Answered)
			}
		})
	}
}

func TestEvaluateComposite(t *testing.T) {
	q := question.Composite{
		Base: question.Base{ID: "c1", Prompt: "Parent"},
		SubQuestions: []question.Question{
			question.Single{Base: question.Base{ID: "s1", Prompt: "Sub 1"}, Options: []string{"A", "B"}, CorrectOption: "A"},
			question.Text{Base: question.Base{ID: "s2", Prompt: "Sub 2"}, CorrectAnswers: []string{"two"}},
		},
	}

	t.Run("all sub-answers correct", func(t *testing.T) {
		got := Evaluate(q, payload(`{"s1":"A","s2":"Two"}`))
		if !got.Correct {
			t.Fatalf("expected correct composite, got %+v", got)
		}
		if !got.Parts["s1"].Correct || !got.Parts["s2"].Correct {
			t.Fatalf("expected both parts correct, got %+v", got.Parts)
		}
	})

	t.Run("one wrong sub-answer fails the parent", func(t *testing.T) {
		got := Evaluate(q, payload(`{"s1":"A","s2":"three"}`))
		if got.Correct {
			t.Fatalf("expected incorrect composite")
		}
		if !got.Parts["s1"].Correct || got.Parts["s2"].Correct {
			t.Fatalf("unexpected part verdicts %+v", got.Parts)
		}
	})

	t.Run("missing sub-answer fails the parent", func(t *testing.T) {
		got := Evaluate(q, payload(`{"s1":"A"}`))
		if got.Correct {
			t.Fatalf("expected incorrect composite")
		}
		if got.Parts["s2"].Answered {
			t.Fatalf("missing part should be unanswered")
		}
	})

	t.Run("missing payload", func(t *testing.T) {
		got := Evaluate(q, nil)
		if got.Correct || got.Answered {
			t.Fatalf("expected unanswered incorrect composite, got %+v", got)
		}
	})
}

func TestScoreSheetLeafCounting(t *testing.T) {
	questions := []question.Question{
		question.Single{Base: question.Base{ID: "q1", Prompt: "One"}, Options: []string{"A", "B"}, CorrectOption: "A"},
		question.Composite{
			Base: question.Base{ID: "q2", Prompt: "Two"},
			SubQuestions: []question.Question{
				question.Single{Base: question.Base{ID: "q2a", Prompt: "Two a"}, Options: []string{"A", "B"}, CorrectOption: "B"},
				question.Text{Base: question.Base{ID: "q2b", Prompt: "Two b"}, CorrectAnswers: []string{"x"}},
				question.Text{Base: question.Base{ID: "q2c", Prompt: "Two c"}, CorrectAnswers: []string{"y"}},
			},
		},
	}
	answers := map[string]json.RawMessage{
		"q1": payload(`"A"`),
		"q2": payload(`{"q2a":"B","q2b":"wrong"}`),
	}

	got := ScoreSheet(questions, answers)

	// Four atomic questions: q1 plus three composite sub-questions.
	if got.TotalQuestions != 4 {
		t.Fatalf("expected 4 leaf questions, got %d", got.TotalQuestions)
	}
	if got.CorrectCount != 2 {
		t.Fatalf("expected 2 correct leaves, got %d", got.CorrectCount)
	}
	if got.AnsweredCount != 3 {
		t.Fatalf("expected 3 answered leaves, got %d", got.AnsweredCount)
	}
	if got.Percent != 50 {
		t.Fatalf("expected 50 percent, got %v", got.Percent)
	}

	if len(got.Questions) != 2 {
		t.Fatalf("expected 2 score rows, got %d", len(got.Questions))
	}
	comp := got.Questions[1]
	if comp.LeafTotal != 3 || comp.LeafCorrect != 1 {
		t.Fatalf("expected composite 1/3, got %d/%d", comp.LeafCorrect, comp.LeafTotal)
	}
	if comp.Verdict.Correct {
		t.Fatalf("composite with a wrong sub-answer must not pass")
	}
}

func TestScoreSheetEmpty(t *testing.T) {
	got := ScoreSheet(nil, nil)
	if got.TotalQuestions != 0 || got.Percent != 0 {
		t.Fatalf("expected zeroed sheet, got %+v", got)
	}
}

func payload(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
