package session

import (
	"encoding/json"
	"sort"
	"strings"

	"quizdesk/internal/question"
)

// Verdict is the outcome of grading one question. Correct is the single
// pass/fail answer; Parts carries the per-sub-question breakdown for
// composites. Expected holds the normalized correct answers for display.
type Verdict struct {
	Correct  bool               `json:"correct"`
	Answered bool               `json:"answered"`
	Expected []string           `json:"expected,omitempty"`
	Parts    map[string]Verdict `json:"parts,omitempty"`
}

// Evaluate grades one submitted answer against one question. It is a pure
// function: the payload is the JSON encoding of the answer value whose
// shape depends on the variant (string for single/text, string array for
// multiple, item-to-target object for drag, sub-id-to-answer object for
// composite). It never panics; a payload of the wrong shape grades as an
// answered, incorrect attempt.
func Evaluate(q question.Question, payload json.RawMessage) Verdict {
	switch v := q.(type) {
	case question.Single:
		return evaluateSingle(v, payload)
	case question.Multiple:
		return evaluateMultiple(v, payload)
	case question.Text:
		return evaluateText(v, payload)
	case question.Drag:
		return evaluateDrag(v, payload)
	case question.Composite:
		return evaluateComposite(v, payload)
	default:
		return Verdict{}
	}
}

func evaluateSingle(q question.Single, payload json.RawMessage) Verdict {
	out := Verdict{Expected: []string{q.CorrectOption}}
	selected, status := decodeStringAnswer(payload)
	if status == answerMissing {
		return out
	}
	out.Answered = true
	if status == answerMalformed {
		return out
	}
	// Case-sensitive by contract; normalization happens at authoring time.
	out.Correct = selected == q.CorrectOption
	return out
}

func evaluateMultiple(q question.Multiple, payload json.RawMessage) Verdict {
	correctSet := stringSet(q.CorrectOptions)
	out := Verdict{Expected: sortedKeys(correctSet)}

	selected, status := decodeStringSliceAnswer(payload)
	if status == answerMissing {
		return out
	}
	out.Answered = true
	if status == answerMalformed {
		return out
	}
	out.Correct = equalSets(stringSet(selected), correctSet)
	return out
}

func evaluateText(q question.Text, payload json.RawMessage) Verdict {
	usable := make([]string, 0, len(q.CorrectAnswers))
	for _, a := range q.CorrectAnswers {
		if strings.TrimSpace(a) != "" {
			usable = append(usable, strings.TrimSpace(a))
		}
	}
	out := Verdict{Expected: usable}

	raw, status := decodeStringAnswer(payload)
	if status == answerMissing {
		return out
	}
	out.Answered = true
	if status == answerMalformed {
		return out
	}
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		out.Answered = false
		return out
	}
	for _, a := range usable {
		if strings.ToLower(a) == normalized {
			out.Correct = true
			return out
		}
	}
	return out
}

func evaluateDrag(q question.Drag, payload json.RawMessage) Verdict {
	out := Verdict{Expected: formatMappingPairs(q)}

	placement, status := decodePlacementAnswer(payload)
	if status == answerMissing {
		return out
	}
	out.Answered = true
	if status == answerMalformed {
		return out
	}

	// Null, absent, and empty-string placements all mean "unassigned" on
	// both sides of the comparison.
	for _, item := range q.Items {
		if normalizeSlot(placement[item.ID]) != normalizeSlot(q.CorrectMapping[item.ID]) {
			return out
		}
	}
	out.Correct = true
	return out
}

func evaluateComposite(q question.Composite, payload json.RawMessage) Verdict {
	parts := decodePartsAnswer(payload)

	out := Verdict{Parts: make(map[string]Verdict, len(q.SubQuestions))}
	allCorrect := len(q.SubQuestions) > 0
	for _, sub := range q.SubQuestions {
		verdict := Evaluate(sub, parts[question.ID(sub)])
		out.Parts[question.ID(sub)] = verdict
		if verdict.Answered {
			out.Answered = true
		}
		if !verdict.Correct {
			allCorrect = false
		}
	}
	out.Correct = allCorrect
	return out
}

// QuestionScore is one row of a graded answer sheet. For a composite,
// LeafTotal and LeafCorrect count its sub-questions individually.
type QuestionScore struct {
	QuestionID  string  `json:"question_id"`
	Verdict     Verdict `json:"verdict"`
	LeafTotal   int     `json:"leaf_total"`
	LeafCorrect int     `json:"leaf_correct"`
}

// SheetResult aggregates a full submission. Totals count atomic questions:
// composites are expanded, so the percentage denominator matches what the
// student sees as the number of scored answers.
type SheetResult struct {
	TotalQuestions int             `json:"total_questions"`
	CorrectCount   int             `json:"correct_count"`
	AnsweredCount  int             `json:"answered_count"`
	Percent        float64         `json:"percent"`
	Questions      []QuestionScore `json:"questions"`
}

// ScoreSheet grades every question of a quiz against the submitted answer
// map (keyed by question id) and aggregates with the leaf-counting rule.
func ScoreSheet(questions []question.Question, answers map[string]json.RawMessage) SheetResult {
	out := SheetResult{Questions: make([]QuestionScore, 0, len(questions))}
	for _, q := range questions {
		verdict := Evaluate(q, answers[question.ID(q)])
		score := QuestionScore{QuestionID: question.ID(q), Verdict: verdict}

		if comp, ok := q.(question.Composite); ok {
			score.LeafTotal = len(comp.SubQuestions)
			for _, sub := range comp.SubQuestions {
				part := verdict.Parts[question.ID(sub)]
				if part.Correct {
					score.LeafCorrect++
				}
				if part.Answered {
					out.AnsweredCount++
				}
			}
		} else {
			score.LeafTotal = 1
			if verdict.Correct {
				score.LeafCorrect = 1
			}
			if verdict.Answered {
				out.AnsweredCount++
			}
		}

		out.TotalQuestions += score.LeafTotal
		out.CorrectCount += score.LeafCorrect
		out.Questions = append(out.Questions, score)
	}
	if out.TotalQuestions > 0 {
		out.Percent = 100 * float64(out.CorrectCount) / float64(out.TotalQuestions)
	}
	return out
}

type answerStatus int

const (
	answerOK answerStatus = iota
	answerMissing
	answerMalformed
)

func decodeStringAnswer(payload json.RawMessage) (string, answerStatus) {
	if len(payload) == 0 {
		return "", answerMissing
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", answerMalformed
	}
	switch t := v.(type) {
	case nil:
		return "", answerMissing
	case string:
		if t == "" {
			return "", answerMissing
		}
		return t, answerOK
	default:
		return "", answerMalformed
	}
}

func decodeStringSliceAnswer(payload json.RawMessage) ([]string, answerStatus) {
	if len(payload) == 0 {
		return nil, answerMissing
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, answerMalformed
	}
	switch t := v.(type) {
	case nil:
		return nil, answerMissing
	case []interface{}:
		if len(t) == 0 {
			return nil, answerMissing
		}
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, answerMalformed
			}
			out = append(out, s)
		}
		return out, answerOK
	default:
		return nil, answerMalformed
	}
}

func decodePlacementAnswer(payload json.RawMessage) (map[string]string, answerStatus) {
	if len(payload) == 0 {
		return nil, answerMissing
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, answerMalformed
	}
	switch t := v.(type) {
	case nil:
		return nil, answerMissing
	case map[string]interface{}:
		out := make(map[string]string, len(t))
		for k, raw := range t {
			out[k] = normalizeAny(raw)
		}
		return out, answerOK
	default:
		return nil, answerMalformed
	}
}

func decodePartsAnswer(payload json.RawMessage) map[string]json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}

// normalizeSlot maps every representation of "not placed on any target" to
// the empty string so both sides of a drag comparison use one canonical
// unassigned value.
func normalizeSlot(v string) string {
	return strings.TrimSpace(v)
}

func normalizeAny(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func formatMappingPairs(q question.Drag) []string {
	out := make([]string, 0, len(q.Items))
	for _, item := range q.Items {
		if target := q.CorrectMapping[item.ID]; target != "" {
			out = append(out, item.ID+"="+target)
		}
	}
	return out
}

func stringSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}

func equalSets(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
